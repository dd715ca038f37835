package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/immersion-se/controller/pkg/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Metrics struct {
	registry    *prometheus.Registry
	price       *prometheus.GaugeVec
	switchOn    prometheus.Gauge
	slotEnd     prometheus.Gauge
	power       prometheus.Gauge
	totalEnergy prometheus.Gauge
	decisions   *prometheus.CounterVec
	slotEnergy  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "immersion",
			Name:      "unit_rate",
			Help:      "Current unit rate including VAT",
		}, []string{"energy"}),
		switchOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "immersion",
			Name:      "switch_on_binary",
			Help:      "Registers when the immersion heater is commanded on for the current slot",
		}),
		slotEnd: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "immersion",
			Name:      "slot_end_timestamp_seconds",
			Help:      "End of the current electricity slot",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "immersion",
			Name:      "power_watts",
			Help:      "Power drawn by the immersion heater",
		}),
		totalEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "immersion",
			Name:      "meter_energy_watthours",
			Help:      "Immersion energy meter reading",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "immersion",
			Name:      "decisions_total",
			Help:      "Number of slots decided, by outcome",
		}, []string{"outcome"}),
		slotEnergy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "immersion",
			Name:      "slot_energy_watthours_total",
			Help:      "Energy used by the immersion heater summed over slots",
		}),
	}
	m.registry.MustRegister(m.price, m.switchOn, m.slotEnd, m.power, m.totalEnergy, m.decisions, m.slotEnergy)
	return m
}

func (m *Metrics) Observe(s state.State) {
	values := s.Map()
	if v, ok := values["electricityPrice"]; ok {
		m.price.WithLabelValues("electricity").Set(v)
	}
	if v, ok := values["gasPrice"]; ok {
		m.price.WithLabelValues("gas").Set(v)
	}
	if v, ok := values["turnOn"]; ok {
		m.switchOn.Set(v)
		outcome := "off"
		if v == 1 {
			outcome = "on"
		}
		m.decisions.WithLabelValues(outcome).Inc()
	}
	if v, ok := values["until"]; ok {
		m.slotEnd.Set(v)
	}
	if v, ok := values["power"]; ok {
		m.power.Set(v)
	}
	if v, ok := values["totalEnergy"]; ok {
		m.totalEnergy.Set(v)
	}
	if v, ok := values["slotEnergy"]; ok && v >= 0 {
		m.slotEnergy.Add(v)
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on address until ctx is done.
func (m *Metrics) Serve(ctx context.Context, wg *sync.WaitGroup, address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		logrus.Infof("metrics: listening on %s", address)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics: http server failed: %s", err)
		}
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			logrus.Errorf("metrics: error shutting down: %s", err)
		}
	}()
}
