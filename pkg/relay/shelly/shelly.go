package shelly

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/immersion-se/controller/pkg/relay"
	"github.com/immersion-se/controller/pkg/version"
	"github.com/sirupsen/logrus"
)

var httpClient = &http.Client{
	Timeout: time.Second * 10,
}

// Shelly drives relay 0 of a Shelly device over its HTTP API.
type Shelly struct {
	url    string
	client *http.Client
	now    func() time.Time
}

type relayResponse struct {
	IsOn           *bool   `json:"ison"`
	HasTimer       *bool   `json:"has_timer"`
	TimerStartedAt int64   `json:"timer_started_at"`
	TimerDuration  float64 `json:"timer_duration"`
	TimerRemaining float64 `json:"timer_remaining"`
	Source         string  `json:"source"`
}

func New(u string) *Shelly {
	return &Shelly{
		url:    strings.TrimRight(u, "/"),
		client: httpClient,
		now:    time.Now,
	}
}

func (s *Shelly) TurnOn(ctx context.Context, until time.Time) error {
	if until.IsZero() {
		return relay.ErrNotSupported
	}
	seconds := relay.TimerSeconds(until, s.now())
	if seconds < 1 {
		return fmt.Errorf("%w: end time %s is not in the future", relay.ErrActuationFailure, until.Format(time.RFC3339))
	}

	state, err := s.command(ctx, url.Values{
		"turn":  {"on"},
		"timer": {strconv.FormatInt(seconds, 10)},
	})
	if err != nil {
		return err
	}
	if !state.On {
		return fmt.Errorf("%w: expected ison to be true, got false", relay.ErrActuationFailure)
	}
	if !state.HasTimer {
		return fmt.Errorf("%w: expected has_timer to be true, got false", relay.ErrActuationFailure)
	}

	logrus.WithFields(logrus.Fields{"until": until, "timer": seconds}).Info("shelly: switch on")
	return nil
}

func (s *Shelly) TurnOff(ctx context.Context) error {
	state, err := s.command(ctx, url.Values{"turn": {"off"}})
	if err != nil {
		return err
	}
	if state.On {
		return fmt.Errorf("%w: expected ison to be false, got true", relay.ErrActuationFailure)
	}
	logrus.Info("shelly: switch off")
	return nil
}

func (s *Shelly) command(ctx context.Context, params url.Values) (*relay.State, error) {
	u := fmt.Sprintf("%s/relay/0?%s", s.url, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", relay.ErrActuationFailure, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", relay.ErrActuationFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: error calling relay StatusCode: %d", relay.ErrActuationFailure, resp.StatusCode)
	}

	response := &relayResponse{}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return nil, fmt.Errorf("%w: error decoding relay response: %s", relay.ErrActuationFailure, err)
	}
	if response.IsOn == nil {
		return nil, fmt.Errorf("%w: relay response has no ison field", relay.ErrActuationFailure)
	}

	state := &relay.State{
		On:    *response.IsOn,
		Timer: response.TimerRemaining,
	}
	if response.HasTimer != nil {
		state.HasTimer = *response.HasTimer
	}
	return state, nil
}
