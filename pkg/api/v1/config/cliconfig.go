package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/immersion-se/controller/pkg/api/v1/types"
)

var ErrInvalidConfig = errors.New("invalid config")

type CliConfig struct {
	// Mode a: fixed price urls.
	ElectricityTariffURL string
	GasTariffURL         string

	// Mode b: resolve tariffs from the account.
	APIURL        string `default:"https://api.octopus.energy/v1"`
	APIKey        string
	APIKeyFile    string
	AccountNumber string

	SwitchType          string `default:"shelly"`
	ShellyURL           string
	ModbusAddress       string
	ModbusSlaveID       int `default:"1"`
	ModbusCoil          int
	ModbusTimerRegister int `default:"1"`

	// Iterations stops after n iterations when > 0.
	Iterations int

	MetricsListen string
	MQTTListen    string

	MeterDevice string
	MeterID     int
	MeterModel  string

	LogLevel string `default:"info"`

	mutex sync.RWMutex
}

func (c *CliConfig) Key() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.APIKey
}

func (c *CliConfig) SetKey(t string) {
	c.mutex.Lock()
	c.APIKey = strings.TrimSpace(t)
	c.mutex.Unlock()
}

// LoadKey reads APIKeyFile if APIKey was not given directly.
func (c *CliConfig) LoadKey() error {
	if c.APIKeyFile == "" || c.Key() != "" {
		return nil
	}
	b, err := os.ReadFile(c.APIKeyFile)
	if err != nil {
		return fmt.Errorf("error reading apikeyfile: %w", err)
	}
	if len(b) == 0 {
		return nil // dont load empty key
	}
	c.SetKey(string(b))
	return nil
}

// UseAccount is true when tariffs should be resolved from the account instead of fixed urls.
func (c *CliConfig) UseAccount() bool {
	return c.ElectricityTariffURL == "" && c.GasTariffURL == ""
}

func (c *CliConfig) Validate() error {
	if c.UseAccount() {
		if c.Key() == "" || c.AccountNumber == "" {
			return fmt.Errorf("%w: either -electricitytariffurl and -gastariffurl or -apikey and -accountnumber are required", ErrInvalidConfig)
		}
	} else if c.ElectricityTariffURL == "" || c.GasTariffURL == "" {
		return fmt.Errorf("%w: both -electricitytariffurl and -gastariffurl are required", ErrInvalidConfig)
	}

	switch types.SwitchType(c.SwitchType) {
	case types.SwitchTypeShelly:
		if c.ShellyURL == "" {
			return fmt.Errorf("%w: -shellyurl is required for switchtype %s", ErrInvalidConfig, c.SwitchType)
		}
	case types.SwitchTypeModbus:
		if c.ModbusAddress == "" {
			return fmt.Errorf("%w: -modbusaddress is required for switchtype %s", ErrInvalidConfig, c.SwitchType)
		}
		if c.ModbusSlaveID < 0 || c.ModbusSlaveID > 247 {
			return fmt.Errorf("%w: modbusslaveid %d out of range", ErrInvalidConfig, c.ModbusSlaveID)
		}
		if c.ModbusCoil < 0 || c.ModbusCoil > 0xffff || c.ModbusTimerRegister < 0 || c.ModbusTimerRegister > 0xffff {
			return fmt.Errorf("%w: modbus register out of range", ErrInvalidConfig)
		}
	case types.SwitchTypeDummy:
	default:
		return fmt.Errorf("%w: unknown switchtype %q", ErrInvalidConfig, c.SwitchType)
	}

	if c.Iterations < 0 {
		return fmt.Errorf("%w: iterations must not be negative", ErrInvalidConfig)
	}
	if c.MeterDevice != "" && c.MeterID <= 0 {
		return fmt.Errorf("%w: -meterid is required with -meterdevice", ErrInvalidConfig)
	}
	return nil
}
