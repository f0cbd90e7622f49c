package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/apperr"
	"github.com/sony/gobreaker/v2"
)

// HTTPTokenSource fetches grants from the storefront's /api/token endpoint.
// Remote failures trip a circuit breaker so a dead endpoint fails fast.
type HTTPTokenSource struct {
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[string]
}

func NewHTTPTokenSource(endpoint string, client *http.Client) *HTTPTokenSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPTokenSource{
		endpoint: endpoint,
		client:   client,
		cb: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "voice-token",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
			// answers like 400/500 with a message are the endpoint working as intended
			IsSuccessful: func(err error) bool {
				return err == nil || !apperr.Is(err, apperr.KindRemoteServiceFailure)
			},
		}),
	}
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

func (s *HTTPTokenSource) Token(ctx context.Context, room, identity string) (string, error) {
	tok, err := s.cb.Execute(func() (string, error) { return s.fetch(ctx, room, identity) })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", apperr.RemoteServiceFailure("voice token service unavailable", err)
	}
	return tok, err
}

func (s *HTTPTokenSource) fetch(ctx context.Context, room, identity string) (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", apperr.Wrap(apperr.KindServiceMisconfigured, "invalid token endpoint", err)
	}
	q := u.Query()
	q.Set("room", room)
	q.Set("username", identity)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindServiceMisconfigured, "invalid token endpoint", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.RemoteServiceFailure("token request failed", err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return "", apperr.RemoteServiceFailure("token response unreadable", fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}
	switch {
	case resp.StatusCode == http.StatusOK && body.Token != "":
		return body.Token, nil
	case resp.StatusCode == http.StatusBadRequest:
		return "", apperr.InvalidRequest(body.Error)
	case resp.StatusCode == http.StatusInternalServerError && body.Error != "":
		return "", apperr.ServiceMisconfigured(body.Error)
	default:
		return "", apperr.RemoteServiceFailure("token request failed",
			fmt.Errorf("status %d: %s", resp.StatusCode, body.Error))
	}
}
