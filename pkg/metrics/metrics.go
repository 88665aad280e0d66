// Package metrics exposes binding state as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder records tariff state and schedule refreshes per binding.
type Recorder struct {
	active    *prometheus.GaugeVec
	price     *prometheus.GaugeVec
	available *prometheus.GaugeVec
	refreshes *prometheus.CounterVec
}

// NewWithRegistry registers the binding metrics on reg. If reg is nil, the
// default registerer is used. Collectors that are already registered are
// reused.
func NewWithRegistry(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cezhdo_tariff_active",
			Help: "1 when the low tariff is active for the binding",
		}, []string{"binding"}),
		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cezhdo_tariff_price",
			Help: "Configured price of the currently active tariff",
		}, []string{"binding"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cezhdo_schedule_available",
			Help: "1 when the binding has a schedule and its last fetch succeeded",
		}, []string{"binding"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cezhdo_schedule_refresh_total",
			Help: "Remote schedule refresh attempts by result",
		}, []string{"binding", "result"}),
	}

	var err error
	if r.active, err = register(reg, r.active); err != nil {
		return nil, err
	}
	if r.price, err = register(reg, r.price); err != nil {
		return nil, err
	}
	if r.available, err = register(reg, r.available); err != nil {
		return nil, err
	}
	if r.refreshes, err = register(reg, r.refreshes); err != nil {
		return nil, err
	}
	return r, nil
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

// RecordState sets the tariff gauges of a binding that has a schedule,
// fresh or cached, and whether it is available.
func (r *Recorder) RecordState(binding string, available, lowTariff bool, price float64) {
	r.available.WithLabelValues(binding).Set(boolValue(available))
	r.active.WithLabelValues(binding).Set(boolValue(lowTariff))
	r.price.WithLabelValues(binding).Set(price)
}

// RecordUnavailable marks a binding as having no schedule and clears its
// tariff gauges.
func (r *Recorder) RecordUnavailable(binding string) {
	r.available.WithLabelValues(binding).Set(0)
	r.active.DeleteLabelValues(binding)
	r.price.DeleteLabelValues(binding)
}

// RecordRefresh counts a remote refresh attempt.
func (r *Recorder) RecordRefresh(binding string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.refreshes.WithLabelValues(binding, result).Inc()
}

// Forget removes every series of a binding.
func (r *Recorder) Forget(binding string) {
	r.active.DeleteLabelValues(binding)
	r.price.DeleteLabelValues(binding)
	r.available.DeleteLabelValues(binding)
	r.refreshes.DeletePartialMatch(prometheus.Labels{"binding": binding})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
