package relay

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	// ErrActuationFailure is returned when the actuator call fails or its reported state does not match.
	ErrActuationFailure = errors.New("actuation failure")
	// ErrNotSupported is returned when a switch is asked to turn on without an end time.
	ErrNotSupported = errors.New("turn on without end time not supported")
)

type Switch interface {
	// TurnOn energizes the load until the given time, after which the actuator turns itself off.
	TurnOn(ctx context.Context, until time.Time) error
	TurnOff(ctx context.Context) error
}

// State is the actuator state as reported back after a command.
type State struct {
	On       bool    `json:"on"`
	HasTimer bool    `json:"hasTimer"`
	Timer    float64 `json:"timer,omitempty"`
}

// TimerSeconds returns until-now rounded to the nearest whole second.
func TimerSeconds(until, now time.Time) int64 {
	return int64(math.Round(until.Sub(now).Seconds()))
}
