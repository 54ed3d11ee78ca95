package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics — счётчики сервиса в собственном реестре.
type Metrics struct {
	Registry *prometheus.Registry

	Requests     *prometheus.CounterVec
	Associations prometheus.Counter
	Unlocks      *prometheus.CounterVec
	RateLimited  prometheus.Counter
}

// New создаёт и регистрирует счётчики.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keebridge_requests_total",
				Help: "Total count of protocol requests by command and HTTP status",
			},
			[]string{"command", "status"},
		),
		Associations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keebridge_associations_total",
			Help: "Total count of successful client associations",
		}),
		Unlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keebridge_unlock_attempts_total",
				Help: "Total count of vault unlock attempts by result",
			},
			[]string{"result"},
		),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keebridge_rate_limited_total",
			Help: "Total count of associate requests rejected by the rate limiter",
		}),
	}
	m.Registry.MustRegister(m.Requests, m.Associations, m.Unlocks, m.RateLimited)
	return m
}

// ObserveRequest учитывает обработанный запрос.
func (m *Metrics) ObserveRequest(command string, status int) {
	m.Requests.WithLabelValues(command, strconv.Itoa(status)).Inc()
}

// ObserveUnlock учитывает попытку открыть хранилище: ok, failed или abandoned.
func (m *Metrics) ObserveUnlock(result string) {
	m.Unlocks.WithLabelValues(result).Inc()
}

// RegisterDropped публикует число отброшенных уведомлений.
func (m *Metrics) RegisterDropped(dropped func() uint64) {
	m.Registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "keebridge_notifications_dropped_total",
			Help: "Total count of operator notifications dropped on a full queue",
		},
		func() float64 { return float64(dropped()) },
	))
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
