package octopus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/immersion-se/controller/pkg/rate"
	"github.com/immersion-se/controller/pkg/version"
	"github.com/sirupsen/logrus"
)

const APIURL = "https://api.octopus.energy/v1"

var httpClient = &http.Client{
	Timeout: time.Second * 30,
}

// Tariff is a rate source backed by a pre-resolved standard-unit-rates URL.
type Tariff struct {
	priceURL string
	client   *http.Client
}

func NewTariff(priceURL string) *Tariff {
	return &Tariff{
		priceURL: priceURL,
		client:   httpClient,
	}
}

func (t *Tariff) URL() string {
	return t.priceURL
}

func (t *Tariff) GetRate(ctx context.Context, when time.Time) (rate.Rate, error) {
	return getRate(ctx, t.client, t.priceURL, when)
}

func getRate(ctx context.Context, client *http.Client, priceURL string, when time.Time) (rate.Rate, error) {
	u, err := url.Parse(priceURL)
	if err != nil {
		return rate.Rate{}, fmt.Errorf("%w: invalid price url %q: %s", rate.ErrSourceFailure, priceURL, err)
	}
	q := u.Query()
	q.Set("period_from", when.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return rate.Rate{}, fmt.Errorf("%w: %s", rate.ErrSourceFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return rate.Rate{}, fmt.Errorf("%w: %w", rate.ErrSourceFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rate.Rate{}, fmt.Errorf("%w: error fetching unit rates StatusCode: %d", rate.ErrSourceFailure, resp.StatusCode)
	}

	response := &UnitRateResponse{}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return rate.Rate{}, fmt.Errorf("%w: error decoding unit rates: %s", rate.ErrSourceFailure, err)
	}

	candidates := make([]rate.Candidate, 0, len(response.Results))
	for _, r := range response.Results {
		c := r.candidate()
		if err := c.Validate(); err != nil {
			return rate.Rate{}, fmt.Errorf("%w: %s", rate.ErrSourceFailure, err)
		}
		candidates = append(candidates, c)
	}
	logrus.WithFields(logrus.Fields{
		"url":        priceURL,
		"when":       when.UTC().Format(time.RFC3339),
		"candidates": len(candidates),
	}).Debug("octopus: fetched unit rates")

	return rate.Select(candidates, when)
}
