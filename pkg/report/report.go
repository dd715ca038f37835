package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/immersion-se/controller/pkg/alarm"
	"github.com/immersion-se/controller/pkg/api/v1/meter"
	"github.com/immersion-se/controller/pkg/controller"
	"github.com/immersion-se/controller/pkg/mqtt"
	"github.com/immersion-se/controller/pkg/state"
	"github.com/sirupsen/logrus"
)

type MeterReader interface {
	ReadValues(model string, primaryAddr int) (*meter.Data, error)
}

type Publisher interface {
	Publish(topic string, v interface{}) error
}

type Observer interface {
	Observe(s state.State)
}

// Reporter turns decisions into state snapshots for metrics, mqtt and the energy meter.
// A failing side channel is reported once and then suppressed until it recovers.
type Reporter struct {
	observer  Observer
	publisher Publisher

	meter      MeterReader
	meterModel string
	meterID    int
	cache      *meter.Cache

	alarms *alarm.ActiveAlarms
}

const (
	alarmMeter   = "meter"
	alarmPublish = "publish"
)

type Option func(*Reporter)

func WithObserver(o Observer) Option {
	return func(r *Reporter) {
		r.observer = o
	}
}

func WithPublisher(p Publisher) Option {
	return func(r *Reporter) {
		r.publisher = p
	}
}

func WithMeter(m MeterReader, model string, primaryAddr int) Option {
	return func(r *Reporter) {
		r.meter = m
		r.meterModel = model
		r.meterID = primaryAddr
	}
}

func New(opts ...Option) *Reporter {
	r := &Reporter{
		cache:  &meter.Cache{},
		alarms: &alarm.ActiveAlarms{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) Report(ctx context.Context, d controller.Decision) error {
	s := FromDecision(d)

	var errs []error
	if r.meter != nil {
		data, err := r.meter.ReadValues(r.meterModel, r.meterID)
		if err != nil {
			if r.alarms.Add(alarmMeter) {
				errs = append(errs, fmt.Errorf("error reading meter: %w", err))
			}
		} else {
			r.recovered(alarmMeter)
			addMeter(&s, data, r.cache)
		}
	}

	if r.observer != nil {
		r.observer.Observe(s)
	}

	if r.publisher != nil {
		err := r.publisher.Publish(mqtt.DecisionTopic, s)
		if err != nil {
			if r.alarms.Add(alarmPublish) {
				errs = append(errs, fmt.Errorf("error publishing decision: %w", err))
			}
		} else {
			r.recovered(alarmPublish)
		}
	}

	logrus.WithFields(logrus.Fields{
		"turnOn": d.TurnOn,
		"until":  d.Until,
	}).Debug("report: reported decision")
	return errors.Join(errs...)
}

// Active lists the side channels that are currently failing.
func (r *Reporter) Active() []string {
	return r.alarms.List()
}

func (r *Reporter) recovered(name string) {
	if r.alarms.Remove(name) {
		logrus.Infof("report: %s recovered", name)
	}
}

// FromDecision converts the decimal rates to floats for publishing.
func FromDecision(d controller.Decision) state.State {
	electricity := d.Electricity.Value.InexactFloat64()
	gas := d.Gas.Value.InexactFloat64()
	turnOn := d.TurnOn
	s := state.State{
		Time:             d.Time,
		ElectricityPrice: &electricity,
		GasPrice:         &gas,
		TurnOn:           &turnOn,
	}
	if !d.Until.IsZero() {
		until := d.Until
		s.Until = &until
	}
	return s
}

func addMeter(s *state.State, data *meter.Data, cache *meter.Cache) {
	power := data.Current_W
	total := data.Total_WH
	voltage := data.Current_VLN
	s.Power = &power
	s.TotalEnergy = &total
	s.MeterVoltage = &voltage
	if wh, ok := cache.Swap(data); ok {
		s.SlotEnergy = &wh
	}
}
