package octopus

import (
	"time"

	"github.com/immersion-se/controller/pkg/api/v1/types"
	"github.com/immersion-se/controller/pkg/rate"
	"github.com/shopspring/decimal"
)

type UnitRateResponse struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []UnitRate `json:"results"`
}

type UnitRate struct {
	ValueExcVAT   decimal.Decimal     `json:"value_exc_vat"`
	ValueIncVAT   decimal.Decimal     `json:"value_inc_vat"`
	ValidFrom     time.Time           `json:"valid_from"`
	ValidTo       *time.Time          `json:"valid_to"`
	PaymentMethod types.PaymentMethod `json:"payment_method"`
}

func (u UnitRate) candidate() rate.Candidate {
	return rate.Candidate{
		Rate: rate.Rate{
			Value:     u.ValueIncVAT,
			ValidFrom: u.ValidFrom,
			ValidTo:   u.ValidTo,
		},
		PaymentMethod: u.PaymentMethod,
	}
}

type AccountDetail struct {
	Number     string     `json:"number"`
	Properties []Property `json:"properties"`
}

type Property struct {
	ElectricityMeterPoints []MeterPoint `json:"electricity_meter_points"`
	GasMeterPoints         []MeterPoint `json:"gas_meter_points"`
}

type MeterPoint struct {
	Agreements []AgreementDetail `json:"agreements"`
}

type AgreementDetail struct {
	TariffCode string     `json:"tariff_code"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidTo    *time.Time `json:"valid_to"`
}
