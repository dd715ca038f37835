package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/immersion-se/controller/pkg/rate"
	"github.com/immersion-se/controller/pkg/relay"
	"github.com/sirupsen/logrus"
)

// ErrOpenEndedSlot is returned when the electricity rate has no end and so cannot pace the loop.
var ErrOpenEndedSlot = errors.New("electricity rate has no end")

// SleepFunc blocks until the given time or until ctx is done.
type SleepFunc func(ctx context.Context, until time.Time) error

// Reporter receives every decision after the switch has been commanded.
type Reporter interface {
	Report(ctx context.Context, decision Decision) error
}

// Decision is the outcome of comparing the rates for one slot.
type Decision struct {
	Time        time.Time `json:"time"`
	Electricity rate.Rate `json:"electricity"`
	Gas         rate.Rate `json:"gas"`
	TurnOn      bool      `json:"turnOn"`
	Until       time.Time `json:"until"`
}

// Decide heats with electricity when it costs at most as much as gas. The
// commitment window is always the electricity slot.
func Decide(now time.Time, electricity, gas rate.Rate) Decision {
	d := Decision{
		Time:        now,
		Electricity: electricity,
		Gas:         gas,
		TurnOn:      electricity.Value.LessThanOrEqual(gas.Value),
	}
	if electricity.ValidTo != nil {
		d.Until = *electricity.ValidTo
	}
	return d
}

type Controller struct {
	electricity rate.Source
	gas         rate.Source
	sw          relay.Switch
	sleepUntil  SleepFunc
	now         func() time.Time
	reporter    Reporter
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithReporter(r Reporter) Option {
	return func(c *Controller) {
		c.reporter = r
	}
}

func New(electricity, gas rate.Source, sw relay.Switch, sleepUntil SleepFunc, opts ...Option) *Controller {
	if sleepUntil == nil {
		sleepUntil = SleepUntil
	}
	c := &Controller{
		electricity: electricity,
		gas:         gas,
		sw:          sw,
		sleepUntil:  sleepUntil,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run loops until a collaborator fails or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	return c.run(ctx, -1)
}

// RunIterations stops cleanly after n iterations.
func (c *Controller) RunIterations(ctx context.Context, n int) error {
	if n < 0 {
		n = 0
	}
	return c.run(ctx, n)
}

// run is unbounded when limit is negative.
func (c *Controller) run(ctx context.Context, limit int) error {
	for i := 0; limit < 0 || i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.iterate(ctx); err != nil {
			return fmt.Errorf("iteration %d: %w", i+1, err)
		}
	}
	return nil
}

func (c *Controller) iterate(ctx context.Context) error {
	now := c.now()

	electricity, err := c.electricity.GetRate(ctx, now)
	if err != nil {
		return fmt.Errorf("error fetching electricity rate: %w", err)
	}
	if electricity.ValidTo == nil {
		return fmt.Errorf("%w: %s", ErrOpenEndedSlot, electricity)
	}

	gas, err := c.gas.GetRate(ctx, now)
	if err != nil {
		return fmt.Errorf("error fetching gas rate: %w", err)
	}

	decision := Decide(now, electricity, gas)
	logrus.WithFields(logrus.Fields{
		"gas":         gas.Value.String(),
		"electricity": electricity.Value.String(),
		"turnOn":      decision.TurnOn,
		"until":       decision.Until.Format(time.RFC3339),
	}).Info("controller: compared rates")

	if decision.TurnOn {
		err = c.sw.TurnOn(ctx, decision.Until)
		if err != nil {
			return fmt.Errorf("error turning on switch: %w", err)
		}
	}

	if c.reporter != nil {
		err = c.reporter.Report(ctx, decision)
		if err != nil {
			logrus.Warnf("controller: error reporting decision: %s", err)
		}
	}

	return c.sleepUntil(ctx, decision.Until)
}

// SleepUntil blocks until t. A t at or before now returns immediately.
func SleepUntil(ctx context.Context, t time.Time) error {
	logrus.Infof("sleeping until %s", t.Format(time.RFC3339))
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
