package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/immersion-se/controller/pkg/api/v1/config"
	"github.com/immersion-se/controller/pkg/controller"
	"github.com/immersion-se/controller/pkg/mbus"
	"github.com/immersion-se/controller/pkg/metrics"
	"github.com/immersion-se/controller/pkg/mqtt"
	"github.com/immersion-se/controller/pkg/report"
	"github.com/immersion-se/controller/pkg/version"
	"github.com/sirupsen/logrus"
)

type App struct {
	wg      *sync.WaitGroup
	config  *config.CliConfig
	closers []io.Closer
	cancel  context.CancelFunc

	err   error
	mutex sync.Mutex
}

func New(config *config.CliConfig) *App {
	return &App{
		wg:     &sync.WaitGroup{},
		config: config,
	}
}

// Start builds the collaborators from config and runs the controller in the background.
func (a *App) Start(ctx context.Context) error {
	err := a.config.Validate()
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"commit": version.Build.Commit,
		"time":   version.Build.Time,
	}).Info("starting immersion controller")

	ctx, a.cancel = context.WithCancel(ctx)

	electricity, gas, err := a.sources(ctx)
	if err != nil {
		a.cancel()
		return err
	}

	sw, err := a.newSwitch()
	if err != nil {
		a.cancel()
		return err
	}

	reporter, err := a.reporter(ctx)
	if err != nil {
		a.cancel()
		a.close()
		return err
	}

	c := controller.New(electricity, gas, sw, controller.SleepUntil, controller.WithReporter(reporter))

	a.wg.Add(1)
	go a.controllerLoop(ctx, c)
	return nil
}

// Wait blocks until the controller and all servers have stopped.
func (a *App) Wait() error {
	a.wg.Wait()
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.err
}

func (a *App) controllerLoop(ctx context.Context, c *controller.Controller) {
	defer a.wg.Done()
	// stop mqtt and metrics when the controller returns
	defer a.cancel()
	defer a.close()

	var err error
	if a.config.Iterations > 0 {
		err = c.RunIterations(ctx, a.config.Iterations)
	} else {
		err = c.Run(ctx)
	}

	if errors.Is(err, context.Canceled) {
		logrus.Info("controller stopped")
		return
	}
	if err != nil {
		a.mutex.Lock()
		a.err = err
		a.mutex.Unlock()
		return
	}
	logrus.Infof("controller finished after %d iterations", a.config.Iterations)
}

func (a *App) reporter(ctx context.Context) (*report.Reporter, error) {
	var opts []report.Option

	if a.config.MetricsListen != "" {
		m := metrics.New()
		m.Serve(ctx, a.wg, a.config.MetricsListen)
		opts = append(opts, report.WithObserver(m))
	}

	if a.config.MQTTListen != "" {
		broker, err := mqtt.Start(ctx, a.wg, a.config.MQTTListen)
		if err != nil {
			return nil, err
		}
		opts = append(opts, report.WithPublisher(broker))
	}

	if a.config.MeterDevice != "" {
		m := mbus.New(a.config.MeterDevice)
		a.closers = append(a.closers, m)
		opts = append(opts, report.WithMeter(m, a.config.MeterModel, a.config.MeterID))
	}

	return report.New(opts...), nil
}

func (a *App) close() {
	for _, c := range a.closers {
		err := c.Close()
		if err != nil {
			logrus.Errorf("error closing: %s", err)
		}
	}
	a.closers = nil
}
