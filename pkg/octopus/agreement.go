package octopus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/immersion-se/controller/pkg/api/v1/types"
	"github.com/immersion-se/controller/pkg/rate"
)

var (
	ErrUnknownEnergyType = errors.New("unable to infer energy type")
	ErrAgreement         = errors.New("agreement unavailable")
)

// Agreement binds an account to a tariff over its own validity window.
// A nil ValidTo means the agreement has no end date.
type Agreement struct {
	TariffCode  string
	ProductCode string
	EnergyType  types.EnergyType
	ValidFrom   time.Time
	ValidTo     *time.Time

	apiURL string
	client *http.Client
}

func NewAgreement(tariffCode string, validFrom time.Time, validTo *time.Time) (*Agreement, error) {
	energyType, err := EnergyTypeFromTariffCode(tariffCode)
	if err != nil {
		return nil, err
	}
	if validTo != nil && validTo.Before(validFrom) {
		return nil, fmt.Errorf("%w: agreement %s ends before it starts", ErrAgreement, tariffCode)
	}
	return &Agreement{
		TariffCode:  tariffCode,
		ProductCode: ProductCode(tariffCode),
		EnergyType:  energyType,
		ValidFrom:   validFrom,
		ValidTo:     validTo,
		apiURL:      APIURL,
		client:      httpClient,
	}, nil
}

// ProductCode strips the leading energy and register segments and the trailing region letter,
// E-1R-AGILE-23-12-06-M becomes AGILE-23-12-06.
func ProductCode(tariffCode string) string {
	parts := strings.Split(tariffCode, "-")
	if len(parts) < 4 {
		return ""
	}
	return strings.Join(parts[2:len(parts)-1], "-")
}

func EnergyTypeFromTariffCode(tariffCode string) (types.EnergyType, error) {
	switch {
	case strings.HasPrefix(tariffCode, "E"):
		return types.EnergyTypeElectricity, nil
	case strings.HasPrefix(tariffCode, "G"):
		return types.EnergyTypeGas, nil
	}
	return "", fmt.Errorf("%w from tariff code %q", ErrUnknownEnergyType, tariffCode)
}

// IsCurrent reports whether the agreement is active at now.
func (a *Agreement) IsCurrent(now time.Time) bool {
	return a.ValidFrom.Before(now) && (a.ValidTo == nil || a.ValidTo.After(now))
}

func (a *Agreement) UnitRatesURL() string {
	return fmt.Sprintf("%s/products/%s/%s-tariffs/%s/standard-unit-rates/", a.apiURL, a.ProductCode, a.EnergyType, a.TariffCode)
}

func (a *Agreement) GetRate(ctx context.Context, when time.Time) (rate.Rate, error) {
	return getRate(ctx, a.client, a.UnitRatesURL(), when)
}

func (a *Agreement) String() string {
	return fmt.Sprintf("%s agreement %s", a.EnergyType, a.TariffCode)
}
