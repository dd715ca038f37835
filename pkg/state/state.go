package state

import "time"

// State is the snapshot published after each decision.
type State struct {
	Time             time.Time  `json:"time"`
	ElectricityPrice *float64   `json:"electricityPrice,omitempty"`
	GasPrice         *float64   `json:"gasPrice,omitempty"`
	TurnOn           *bool      `json:"turnOn,omitempty"`
	Until            *time.Time `json:"until,omitempty"`

	// Meter readings, only set when a meter is configured.
	Power        *float64 `json:"power,omitempty"`
	TotalEnergy  *float64 `json:"totalEnergy,omitempty"`
	SlotEnergy   *float64 `json:"slotEnergy,omitempty"` // Wh used since the previous decision
	MeterVoltage *float64 `json:"meterVoltage,omitempty"`
}

// Map returns the numeric fields that are set, keyed by their json name.
func (s State) Map() map[string]float64 {
	m := make(map[string]float64)
	if s.ElectricityPrice != nil {
		m["electricityPrice"] = *s.ElectricityPrice
	}
	if s.GasPrice != nil {
		m["gasPrice"] = *s.GasPrice
	}
	if s.TurnOn != nil {
		m["turnOn"] = boolToFloat(*s.TurnOn)
	}
	if s.Until != nil {
		m["until"] = float64(s.Until.Unix())
	}
	if s.Power != nil {
		m["power"] = *s.Power
	}
	if s.TotalEnergy != nil {
		m["totalEnergy"] = *s.TotalEnergy
	}
	if s.SlotEnergy != nil {
		m["slotEnergy"] = *s.SlotEnergy
	}
	if s.MeterVoltage != nil {
		m["meterVoltage"] = *s.MeterVoltage
	}

	return m
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
