package checklist

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/checklist/storage"
)

// Toggle results recorded in checklist_toggles_total.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

type metrics struct {
	items    prometheus.Gauge
	checked  prometheus.Gauge
	toggles  *prometheus.CounterVec
	requests *prometheus.CounterVec
}

// newMetrics creates the platform collectors and registers them on reg when
// it is non-nil. Collectors already registered by an earlier instance are
// reused.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "checklist_items",
			Help: "Number of items in the checklist.",
		}),
		checked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "checklist_items_checked",
			Help: "Number of checked items in the checklist.",
		}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checklist_toggles_total",
			Help: "Switch toggles handled, by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checklist_http_requests_total",
			Help: "HTTP requests served by the checklist API.",
		}, []string{"method", "code"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.items, err = register(reg, m.items); err != nil {
		return nil, err
	}
	if m.checked, err = register(reg, m.checked); err != nil {
		return nil, err
	}
	if m.toggles, err = register(reg, m.toggles); err != nil {
		return nil, err
	}
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) observe(items []storage.Item) {
	checked := 0
	for _, it := range items {
		if it.Checked {
			checked++
		}
	}
	m.items.Set(float64(len(items)))
	m.checked.Set(float64(checked))
}

func (m *metrics) toggle(result string) {
	m.toggles.WithLabelValues(result).Inc()
}

func (m *metrics) request(method string, code int) {
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}
