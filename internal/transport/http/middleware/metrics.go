package middleware

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_http_requests_total",
		Help: "Количество HTTP-запросов по пути и статусу ответа.",
	}, []string{"path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_http_request_duration_seconds",
		Help:    "Длительность обработки HTTP-запросов.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
)

// Metrics собирает счётчик и гистограмму длительности по каждому запросу.
// Ставится после Logging, чтобы переиспользовать statusWriter-обёртку.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)

			timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.URL.Path))
			next.ServeHTTP(sw, r)
			timer.ObserveDuration()

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(status)).Inc()
		})
	}
}
