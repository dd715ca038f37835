package types

type EnergyType string

var EnergyTypeElectricity = EnergyType("electricity")
var EnergyTypeGas = EnergyType("gas")

// PaymentMethod tags duplicate unit rates priced for different payment methods.
type PaymentMethod string

var PaymentMethodDirectDebit = PaymentMethod("DIRECT_DEBIT")
var PaymentMethodNonDirectDebit = PaymentMethod("NON_DIRECT_DEBIT")

type SwitchType string

var SwitchTypeShelly = SwitchType("shelly")
var SwitchTypeModbus = SwitchType("modbus")
var SwitchTypeDummy = SwitchType("dummy")
