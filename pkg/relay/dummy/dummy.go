package dummy

import (
	"context"
	"sync"
	"time"

	"github.com/immersion-se/controller/pkg/relay"
	"github.com/sirupsen/logrus"
)

// Dummy logs commands instead of driving hardware.
type Dummy struct {
	until time.Time
	on    bool
	sync.Mutex
}

func New() *Dummy {
	return &Dummy{}
}

func (d *Dummy) TurnOn(ctx context.Context, until time.Time) error {
	if until.IsZero() {
		return relay.ErrNotSupported
	}
	d.Lock()
	d.on = true
	d.until = until
	d.Unlock()
	logrus.Info("dummy: TurnOn until ", until)
	return nil
}

func (d *Dummy) TurnOff(ctx context.Context) error {
	d.Lock()
	d.on = false
	d.until = time.Time{}
	d.Unlock()
	logrus.Info("dummy: TurnOff")
	return nil
}

func (d *Dummy) State() *relay.State {
	d.Lock()
	defer d.Unlock()
	on := d.on && time.Now().Before(d.until)
	return &relay.State{
		On:       on,
		HasTimer: on,
		Timer:    time.Until(d.until).Seconds(),
	}
}
