package log

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrom_Default(t *testing.T) {
	require.Equal(t, slog.Default(), From(context.Background()))
}

func TestIntoFrom_RoundTrip(t *testing.T) {
	l := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := Into(context.Background(), l)
	require.Same(t, l, From(ctx))
}

func TestFrom_NilLoggerFallsBack(t *testing.T) {
	ctx := Into(context.Background(), nil)
	require.Equal(t, slog.Default(), From(ctx))
}
