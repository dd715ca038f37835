package modbusrelay

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/immersion-se/controller/pkg/modbusclient"
	"github.com/immersion-se/controller/pkg/relay"
	"github.com/sirupsen/logrus"
)

// Registers addresses the relay channel on the device.
type Registers struct {
	Coil  uint16
	Timer uint16
}

// ModbusRelay drives a relay module that keeps a coil on for the number of
// seconds written to its timer register.
type ModbusRelay struct {
	client    modbusclient.Client
	registers Registers
	now       func() time.Time
}

func New(client modbusclient.Client, registers Registers) *ModbusRelay {
	return &ModbusRelay{
		client:    client,
		registers: registers,
		now:       time.Now,
	}
}

func (m *ModbusRelay) TurnOn(ctx context.Context, until time.Time) error {
	if until.IsZero() {
		return relay.ErrNotSupported
	}
	seconds := relay.TimerSeconds(until, m.now())
	if seconds < 1 {
		return fmt.Errorf("%w: end time %s is not in the future", relay.ErrActuationFailure, until.Format(time.RFC3339))
	}
	if seconds > math.MaxUint16 {
		return fmt.Errorf("%w: timer %ds exceeds register range", relay.ErrActuationFailure, seconds)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := m.client.WriteSingleRegister(m.registers.Timer, uint16(seconds))
	if err != nil {
		return fmt.Errorf("%w: %s", relay.ErrActuationFailure, err)
	}
	err = m.client.WriteSingleCoil(m.registers.Coil, true)
	if err != nil {
		return fmt.Errorf("%w: %s", relay.ErrActuationFailure, err)
	}

	state, err := m.State()
	if err != nil {
		return err
	}
	if !state.On {
		return fmt.Errorf("%w: expected coil %d to be on", relay.ErrActuationFailure, m.registers.Coil)
	}
	if !state.HasTimer {
		return fmt.Errorf("%w: expected timer register %d to be set", relay.ErrActuationFailure, m.registers.Timer)
	}

	logrus.WithFields(logrus.Fields{"until": until, "timer": seconds}).Info("modbusrelay: switch on")
	return nil
}

func (m *ModbusRelay) TurnOff(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.client.WriteSingleCoil(m.registers.Coil, false)
	if err != nil {
		return fmt.Errorf("%w: %s", relay.ErrActuationFailure, err)
	}
	on, err := m.client.ReadCoil(m.registers.Coil)
	if err != nil {
		return fmt.Errorf("%w: %s", relay.ErrActuationFailure, err)
	}
	if on {
		return fmt.Errorf("%w: expected coil %d to be off", relay.ErrActuationFailure, m.registers.Coil)
	}
	logrus.Info("modbusrelay: switch off")
	return nil
}

func (m *ModbusRelay) State() (*relay.State, error) {
	on, err := m.client.ReadCoil(m.registers.Coil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", relay.ErrActuationFailure, err)
	}
	timer, err := m.client.ReadHoldingRegister16(m.registers.Timer)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", relay.ErrActuationFailure, err)
	}
	return &relay.State{
		On:       on,
		HasTimer: timer > 0,
		Timer:    float64(timer),
	}, nil
}
