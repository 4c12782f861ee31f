// Package gateclient provides the client side of the gate's HTTP API.
package gateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zephyr/powgate/business/core/credential"
	"github.com/zephyr/powgate/foundation/pow"
)

// DefaultTimeout bounds every request made to the gate.
const DefaultTimeout = 10 * time.Second

// maxBody bounds how much of a response will be read.
const maxBody = 4 << 20

// Config represents the settings for the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Store   credential.Store
	Client  *http.Client
}

// Client talks to the gate's challenge, verify and protected endpoints.
type Client struct {
	baseURL string
	store   credential.Store
	http    *http.Client
}

// New constructs a client for the gate at the base url.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}

	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	c := Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		store:   cfg.Store,
		http:    hc,
	}

	return &c, nil
}

// FetchChallenge requests a fresh challenge for the difficulty.
func (c *Client) FetchChallenge(ctx context.Context, difficulty int) (pow.Challenge, error) {
	endpoint := c.baseURL + "/challenge?difficulty=" + strconv.Itoa(difficulty)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pow.Challenge{}, fmt.Errorf("fetch challenge: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, status, _, err := c.do(req)
	if err != nil {
		return pow.Challenge{}, fmt.Errorf("fetch challenge: %w", err)
	}

	if status != http.StatusOK {
		return pow.Challenge{}, fmt.Errorf("fetch challenge: %w: status %d", ErrMalformedResponse, status)
	}

	var cr challengeResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return pow.Challenge{}, fmt.Errorf("fetch challenge: %w: %s", ErrMalformedResponse, err)
	}

	if cr.Challenge == "" || cr.ChallengeID == "" {
		return pow.Challenge{}, fmt.Errorf("fetch challenge: %w: missing challenge or id", ErrMalformedResponse)
	}

	// The server is trusted to honor the requested difficulty, but when it
	// reports one use that instead.
	if cr.Difficulty <= 0 {
		cr.Difficulty = difficulty
	}

	if err := pow.ValidateDifficulty(cr.Difficulty); err != nil {
		return pow.Challenge{}, fmt.Errorf("fetch challenge: %w: %s", ErrMalformedResponse, err)
	}

	ch := pow.Challenge{
		ID:         cr.ChallengeID,
		Text:       cr.Challenge,
		Difficulty: cr.Difficulty,
	}

	return ch, nil
}

// Submit sends the solution to the gate for verification. A failure status
// from the gate is returned in the response, not as an error. Errors are
// reserved for transport failures and payloads that can't be understood.
func (c *Client) Submit(ctx context.Context, sol pow.Solution) (VerifyResponse, error) {
	data, err := json.Marshal(toVerifyRequest(sol))
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("submit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(data))
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("submit: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, status, _, err := c.do(req)
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("submit: %w", err)
	}

	var vr VerifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return VerifyResponse{}, fmt.Errorf("submit: %w: status %d: %s", ErrMalformedResponse, status, err)
	}

	if vr.Status == "" {
		return VerifyResponse{}, fmt.Errorf("submit: %w: status %d: missing status", ErrMalformedResponse, status)
	}

	return vr, nil
}

// Probe requests the protected page at the path, presenting the session
// credential if one is stored.
func (c *Client) Probe(ctx context.Context, path string) (ProbeResult, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	body, status, header, err := c.do(req)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe: %w", err)
	}

	pr := ProbeResult{
		StatusCode: status,
		Body:       body,
	}

	if status >= 200 && status < 300 {
		pr.Granted = header.Get(AccessHeader) == AccessGranted || bytes.Contains(body, []byte(AccessMarker))
	}

	return pr, nil
}

// =============================================================================

// do executes the request, attaching the credential, and reads the body.
func (c *Client) do(req *http.Request) ([]byte, int, http.Header, error) {
	if c.store != nil {
		if cred, ok := c.store.Load(time.Now()); ok && cred.Matches(req.URL.Path) {
			req.AddCookie(cred.Cookie())
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, 0, nil, ctxErr
		}
		return nil, 0, nil, fmt.Errorf("%w: %s", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: reading body: %s", ErrNetwork, err)
	}

	return body, resp.StatusCode, resp.Header, nil
}
