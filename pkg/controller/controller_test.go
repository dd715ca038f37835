package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/immersion-se/controller/pkg/rate"
	"github.com/immersion-se/controller/pkg/relay"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var midnight = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

// recorder keeps the order of every collaborator call.
type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...interface{}) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type fakeSource struct {
	name  string
	log   *recorder
	rates []rate.Rate
	err   error
	// failAt is the 1-based call that returns err. Zero fails every call when err is set.
	failAt int
	calls  int
}

func (f *fakeSource) GetRate(ctx context.Context, when time.Time) (rate.Rate, error) {
	f.calls++
	f.log.add("%s %s", f.name, when.Format("15:04"))
	if f.err != nil && (f.failAt == 0 || f.failAt == f.calls) {
		return rate.Rate{}, f.err
	}
	return f.rates[(f.calls-1)%len(f.rates)], nil
}

type fakeSwitch struct {
	log *recorder
	err error
}

func (f *fakeSwitch) TurnOn(ctx context.Context, until time.Time) error {
	f.log.add("on %s", until.Format("15:04"))
	return f.err
}

func (f *fakeSwitch) TurnOff(ctx context.Context) error {
	f.log.add("off")
	return f.err
}

var _ relay.Switch = &fakeSwitch{}

// fakeClock jumps to the requested time instead of sleeping.
type fakeClock struct {
	log *recorder
	now time.Time
}

func (f *fakeClock) sleep(ctx context.Context, until time.Time) error {
	f.log.add("sleep %s", until.Format("15:04"))
	if until.After(f.now) {
		f.now = until
	}
	return nil
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

type fakeReporter struct {
	decisions []Decision
	err       error
}

func (f *fakeReporter) Report(ctx context.Context, d Decision) error {
	f.decisions = append(f.decisions, d)
	return f.err
}

func slot(value string, from time.Time, length time.Duration) rate.Rate {
	to := from.Add(length)
	return rate.Rate{Value: decimal.RequireFromString(value), ValidFrom: from, ValidTo: &to}
}

func openEnded(value string, from time.Time) rate.Rate {
	return rate.Rate{Value: decimal.RequireFromString(value), ValidFrom: from}
}

func newTestController(log *recorder, electricity, gas *fakeSource, sw *fakeSwitch, opts ...Option) (*Controller, *fakeClock) {
	clock := &fakeClock{log: log, now: midnight}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(electricity, gas, sw, clock.sleep, opts...), clock
}

func TestRunIterations(t *testing.T) {
	log := &recorder{}
	electricity := &fakeSource{name: "electricity", log: log, rates: []rate.Rate{
		slot("10", midnight, 30*time.Minute),
		slot("15", midnight.Add(30*time.Minute), 30*time.Minute),
	}}
	gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{openEnded("12", midnight)}}
	sw := &fakeSwitch{log: log}
	c, clock := newTestController(log, electricity, gas, sw)

	err := c.RunIterations(context.Background(), 2)
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"electricity 00:00",
		"gas 00:00",
		"on 00:30",
		"sleep 00:30",
		"electricity 00:30",
		"gas 00:30",
		"sleep 01:00",
	}, log.calls)
	assert.Equal(t, midnight.Add(time.Hour), clock.now)
}

func TestTieFavorsElectricity(t *testing.T) {
	log := &recorder{}
	electricity := &fakeSource{name: "electricity", log: log, rates: []rate.Rate{slot("12.0", midnight, 30*time.Minute)}}
	gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{openEnded("12", midnight)}}
	c, _ := newTestController(log, electricity, gas, &fakeSwitch{log: log})

	err := c.RunIterations(context.Background(), 1)
	assert.NoError(t, err)
	assert.Contains(t, log.calls, "on 00:30")
}

func TestPacesToElectricitySlot(t *testing.T) {
	log := &recorder{}
	electricity := &fakeSource{name: "electricity", log: log, rates: []rate.Rate{slot("5", midnight, 30*time.Minute)}}
	gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{slot("6", midnight, 15*time.Minute)}}
	c, _ := newTestController(log, electricity, gas, &fakeSwitch{log: log})

	err := c.RunIterations(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"electricity 00:00", "gas 00:00", "on 00:30", "sleep 00:30"}, log.calls)
}

func TestBoundedRunCounts(t *testing.T) {
	var tests = []struct {
		name        string
		iterations  int
		electricity []string
		wantOn      int
	}{
		{name: "zero", iterations: 0, electricity: []string{"1"}, wantOn: 0},
		{name: "always cheaper", iterations: 5, electricity: []string{"1"}, wantOn: 5},
		{name: "never cheaper", iterations: 4, electricity: []string{"20"}, wantOn: 0},
		{name: "alternating", iterations: 6, electricity: []string{"1", "20"}, wantOn: 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			log := &recorder{}
			var rates []rate.Rate
			for i, v := range tt.electricity {
				rates = append(rates, slot(v, midnight.Add(time.Duration(i)*30*time.Minute), 30*time.Minute))
			}
			electricity := &fakeSource{name: "electricity", log: log, rates: rates}
			gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{openEnded("12", midnight)}}
			c, _ := newTestController(log, electricity, gas, &fakeSwitch{log: log})

			err := c.RunIterations(context.Background(), tt.iterations)
			assert.NoError(t, err)
			assert.Equal(t, tt.iterations, log.count("electricity"))
			assert.Equal(t, tt.iterations, log.count("gas"))
			assert.Equal(t, tt.iterations, log.count("sleep"))
			assert.Equal(t, tt.wantOn, log.count("on"))
		})
	}
}

func TestElectricityFailure(t *testing.T) {
	log := &recorder{}
	electricity := &fakeSource{name: "electricity", log: log, err: rate.ErrSourceFailure}
	gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{openEnded("12", midnight)}}
	c, _ := newTestController(log, electricity, gas, &fakeSwitch{log: log})

	err := c.Run(context.Background())
	assert.True(t, errors.Is(err, rate.ErrSourceFailure))
	assert.Equal(t, []string{"electricity 00:00"}, log.calls)
}

func TestGasFailureAfterSuccessfulIterations(t *testing.T) {
	log := &recorder{}
	electricity := &fakeSource{name: "electricity", log: log, rates: []rate.Rate{slot("1", midnight, 30*time.Minute)}}
	gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{openEnded("12", midnight)}, err: rate.ErrRateUnavailable, failAt: 3}
	c, _ := newTestController(log, electricity, gas, &fakeSwitch{log: log})

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, rate.ErrRateUnavailable))
	assert.Contains(t, err.Error(), "iteration 3")
	assert.Equal(t, 3, log.count("electricity"))
	assert.Equal(t, 2, log.count("on"))
	assert.Equal(t, 2, log.count("sleep"))
	assert.Equal(t, "gas 00:30", log.calls[len(log.calls)-1])
}

func TestSwitchFailureSkipsPacing(t *testing.T) {
	for _, want := range []error{relay.ErrActuationFailure, relay.ErrNotSupported} {
		want := want
		t.Run(want.Error(), func(t *testing.T) {
			log := &recorder{}
			electricity := &fakeSource{name: "electricity", log: log, rates: []rate.Rate{slot("1", midnight, 30*time.Minute)}}
			gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{openEnded("12", midnight)}}
			reporter := &fakeReporter{}
			c, _ := newTestController(log, electricity, gas, &fakeSwitch{log: log, err: want}, WithReporter(reporter))

			err := c.RunIterations(context.Background(), 3)
			assert.True(t, errors.Is(err, want))
			assert.Equal(t, []string{"electricity 00:00", "gas 00:00", "on 00:30"}, log.calls)
			assert.Empty(t, reporter.decisions)
		})
	}
}

func TestOpenEndedElectricitySlot(t *testing.T) {
	log := &recorder{}
	electricity := &fakeSource{name: "electricity", log: log, rates: []rate.Rate{openEnded("1", midnight)}}
	gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{openEnded("12", midnight)}}
	c, _ := newTestController(log, electricity, gas, &fakeSwitch{log: log})

	err := c.RunIterations(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrOpenEndedSlot))
	assert.Equal(t, []string{"electricity 00:00"}, log.calls)
}

func TestReporterReceivesDecisions(t *testing.T) {
	log := &recorder{}
	electricity := &fakeSource{name: "electricity", log: log, rates: []rate.Rate{
		slot("10", midnight, 30*time.Minute),
		slot("15", midnight.Add(30*time.Minute), 30*time.Minute),
	}}
	gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{openEnded("12", midnight)}}
	reporter := &fakeReporter{err: errors.New("broker down")}
	c, _ := newTestController(log, electricity, gas, &fakeSwitch{log: log}, WithReporter(reporter))

	err := c.RunIterations(context.Background(), 2)
	assert.NoError(t, err)
	require.Len(t, reporter.decisions, 2)
	assert.True(t, reporter.decisions[0].TurnOn)
	assert.Equal(t, midnight.Add(30*time.Minute), reporter.decisions[0].Until)
	assert.False(t, reporter.decisions[1].TurnOn)
	assert.Equal(t, midnight.Add(time.Hour), reporter.decisions[1].Until)
	assert.Equal(t, "12", reporter.decisions[1].Gas.Value.String())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	log := &recorder{}
	electricity := &fakeSource{name: "electricity", log: log, rates: []rate.Rate{slot("1", midnight, 30*time.Minute)}}
	gas := &fakeSource{name: "gas", log: log, rates: []rate.Rate{openEnded("12", midnight)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := newTestController(log, electricity, gas, &fakeSwitch{log: log})

	err := c.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, log.calls)
}

func TestDecide(t *testing.T) {
	var tests = []struct {
		electricity string
		gas         string
		want        bool
	}{
		{electricity: "10", gas: "12", want: true},
		{electricity: "15", gas: "12", want: false},
		{electricity: "12", gas: "12.000", want: true},
		{electricity: "-2.1", gas: "6.01", want: true},
		{electricity: "6.0144", gas: "6.0143", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.electricity+" vs "+tt.gas, func(t *testing.T) {
			d := Decide(midnight, slot(tt.electricity, midnight, 30*time.Minute), openEnded(tt.gas, midnight))
			assert.Equal(t, tt.want, d.TurnOn)
			assert.Equal(t, midnight.Add(30*time.Minute), d.Until)
		})
	}
}

func TestSleepUntil(t *testing.T) {
	start := time.Now()
	err := SleepUntil(context.Background(), start.Add(-time.Hour))
	assert.NoError(t, err)
	err = SleepUntil(context.Background(), start)
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	err = SleepUntil(context.Background(), time.Now().Add(20*time.Millisecond))
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = SleepUntil(ctx, time.Now().Add(time.Hour))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
