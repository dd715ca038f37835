package octopus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/immersion-se/controller/pkg/api/v1/types"
	"github.com/immersion-se/controller/pkg/version"
	"github.com/sirupsen/logrus"
)

// AccountClient resolves the agreements of an account. Rate lookups on the
// returned agreements go to the same API base as the account endpoint.
type AccountClient struct {
	apiURL string
	apiKey string
	client *http.Client
}

func NewAccountClient(apiURL, apiKey string) *AccountClient {
	if apiURL == "" {
		apiURL = APIURL
	}
	return &AccountClient{
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
		client: httpClient,
	}
}

func (c *AccountClient) ElectricityAgreement(ctx context.Context, accountNumber string) (*Agreement, error) {
	return c.agreement(ctx, accountNumber, types.EnergyTypeElectricity)
}

func (c *AccountClient) GasAgreement(ctx context.Context, accountNumber string) (*Agreement, error) {
	return c.agreement(ctx, accountNumber, types.EnergyTypeGas)
}

func (c *AccountClient) agreement(ctx context.Context, accountNumber string, energyType types.EnergyType) (*Agreement, error) {
	detail, err := c.fetchAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	if len(detail.Properties) == 0 {
		return nil, fmt.Errorf("%w: account %s has no properties", ErrAgreement, accountNumber)
	}
	property := detail.Properties[0]

	meterPoints := property.ElectricityMeterPoints
	if energyType == types.EnergyTypeGas {
		meterPoints = property.GasMeterPoints
	}
	if len(meterPoints) == 0 || len(meterPoints[0].Agreements) == 0 {
		return nil, fmt.Errorf("%w: account %s has no %s agreements", ErrAgreement, accountNumber, energyType)
	}

	agreements := meterPoints[0].Agreements
	last := agreements[len(agreements)-1]
	a, err := NewAgreement(last.TariffCode, last.ValidFrom, last.ValidTo)
	if err != nil {
		return nil, err
	}
	if a.EnergyType != energyType {
		return nil, fmt.Errorf("%w: %s meter point lists tariff %s", ErrAgreement, energyType, a.TariffCode)
	}
	a.apiURL = c.apiURL
	a.client = c.client

	if !a.IsCurrent(time.Now()) {
		logrus.WithFields(logrus.Fields{
			"tariff":    a.TariffCode,
			"validFrom": a.ValidFrom,
			"validTo":   a.ValidTo,
		}).Warnf("octopus: last listed %s agreement is not current", energyType)
	}
	return a, nil
}

func (c *AccountClient) fetchAccount(ctx context.Context, accountNumber string) (*AccountDetail, error) {
	u := fmt.Sprintf("%s/accounts/%s/", c.apiURL, accountNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAgreement, err)
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAgreement, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: error fetching account %s StatusCode: %d", ErrAgreement, accountNumber, resp.StatusCode)
	}

	response := &AccountDetail{}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return nil, fmt.Errorf("%w: error decoding account: %s", ErrAgreement, err)
	}
	return response, nil
}
