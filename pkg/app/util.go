package app

import (
	"context"
	"fmt"
	"time"

	"github.com/immersion-se/controller/pkg/api/v1/types"
	"github.com/immersion-se/controller/pkg/modbusclient"
	"github.com/immersion-se/controller/pkg/octopus"
	"github.com/immersion-se/controller/pkg/rate"
	"github.com/immersion-se/controller/pkg/relay"
	"github.com/immersion-se/controller/pkg/relay/dummy"
	"github.com/immersion-se/controller/pkg/relay/modbusrelay"
	"github.com/immersion-se/controller/pkg/relay/shelly"
	"github.com/sirupsen/logrus"
)

func (a *App) sources(ctx context.Context) (rate.Source, rate.Source, error) {
	if !a.config.UseAccount() {
		electricity := octopus.NewTariff(a.config.ElectricityTariffURL)
		gas := octopus.NewTariff(a.config.GasTariffURL)
		logrus.WithFields(logrus.Fields{
			"electricity": electricity.URL(),
			"gas":         gas.URL(),
		}).Info("using tariff urls")
		return electricity, gas, nil
	}

	account := octopus.NewAccountClient(a.config.APIURL, a.config.Key())
	electricity, err := account.ElectricityAgreement(ctx, a.config.AccountNumber)
	if err != nil {
		return nil, nil, err
	}
	gas, err := account.GasAgreement(ctx, a.config.AccountNumber)
	if err != nil {
		return nil, nil, err
	}
	logrus.WithFields(logrus.Fields{
		"electricity": electricity.String(),
		"gas":         gas.String(),
	}).Info("resolved agreements")
	return electricity, gas, nil
}

func (a *App) newSwitch() (relay.Switch, error) {
	switch types.SwitchType(a.config.SwitchType) {
	case types.SwitchTypeShelly:
		return shelly.New(a.config.ShellyURL), nil
	case types.SwitchTypeModbus:
		client := modbusclient.Dial(a.config.ModbusAddress, byte(a.config.ModbusSlaveID), 10*time.Second)
		a.closers = append(a.closers, client)
		return modbusrelay.New(client, modbusrelay.Registers{
			Coil:  uint16(a.config.ModbusCoil),
			Timer: uint16(a.config.ModbusTimerRegister),
		}), nil
	case types.SwitchTypeDummy:
		return dummy.New(), nil
	}
	return nil, fmt.Errorf("unknown switchtype %s", a.config.SwitchType)
}
