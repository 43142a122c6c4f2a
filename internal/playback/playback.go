// Package playback models the upstream music-playback controller as a
// fire-and-forget side channel, per spec.md §1's explicit exclusion and
// SPEC_FULL.md's ambient-wiring addition. The real controller (the
// original Rust spotify.rs: client-credentials token fetch, device
// transfer, play-by-uri) is out of scope; this package only ships the
// interface and two stand-ins so the adapter has somewhere to aim a
// round-start notification without ever blocking on it.
package playback

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Player is the injected side channel the adapter fires a notification
// into when a round starts for a question whose Media carries a
// non-empty playback id. Failures are logged and never affect the round.
type Player interface {
	Play(ctx context.Context, trackID string) error
}

// NoOp does nothing; it is the default when no playback controller is
// configured.
type NoOp struct{}

func (NoOp) Play(context.Context, string) error { return nil }

// HTTPStub follows part of spotify.rs's shape against a generic HTTP
// playback API: a client-credentials token fetch, then a play-by-uri
// request naming DeviceID. It sends no separate device-transfer request
// and commits to no particular provider's surface.
type HTTPStub struct {
	BaseURL    string
	ClientID   string
	ClientSecret string
	DeviceID   string
	Client     *http.Client
}

func (s *HTTPStub) Play(ctx context.Context, trackID string) error {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	token, err := s.fetchToken(ctx, client)
	if err != nil {
		return err
	}

	return s.playByURI(ctx, client, token, trackID)
}

func (s *HTTPStub) fetchToken(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/oauth/token", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.ClientID, s.ClientSecret)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errStatus(resp.StatusCode)
	}
	// The real controller parses an access token out of the JSON body; a
	// stub has no credentials to exchange, so it reports success without
	// a usable token.
	return "", nil
}

func (s *HTTPStub) playByURI(ctx context.Context, client *http.Client, token, trackID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.BaseURL+"/me/player/play?device_id="+s.DeviceID, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errStatus(resp.StatusCode)
	}
	return nil
}

type errStatus int

func (e errStatus) Error() string {
	return "playback: unexpected HTTP status"
}

// Notify fires a fire-and-forget Play call in its own goroutine so the
// caller (the protocol adapter) never blocks the engine's single-writer
// path on a slow or unreachable playback controller.
func Notify(p Player, trackID string) {
	if p == nil || trackID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Play(ctx, trackID); err != nil {
			log.Warn("playback notification failed", "error", err)
		}
	}()
}
