// Package backend is the HTTP client for the predictive-maintenance API.
// Every outbound call flows through one shared pipeline: the request stage
// attaches the stored bearer credential, the response stage maps failures to
// typed errors and handles credential invalidation on 401.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/machinepulse/machinepulse/internal/credential"
	"github.com/machinepulse/machinepulse/internal/metrics"
)

const (
	defaultTimeout     = 30 * time.Second
	maxResponseBody    = 1 << 20
	errorSummaryFields = "detail,error,message"
)

// Profile is the backend's view of the signed-in user (GET /users/me).
type Profile struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FullName  string  `json:"full_name,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Role      *string `json:"role,omitempty"`
}

// ClientOptions tunes construction; zero values take defaults.
type ClientOptions struct {
	HTTPClient *http.Client

	// OnUnauthenticated fires once per 401 response, after the credential
	// store has been cleared. It must not block.
	OnUnauthenticated func()
}

// Client is the shared pipeline in front of the backend API. It is bound to
// one credential store; the store decides whether a request carries a bearer
// header.
type Client struct {
	baseURL string
	http    *http.Client
	store   credential.Store

	onUnauthenticated func()
}

func NewClient(baseURL string, store credential.Store, opts ClientOptions) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	if store == nil {
		return nil, fmt.Errorf("backend credential store is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:           baseURL,
		http:              httpClient,
		store:             store,
		onUnauthenticated: opts.OnUnauthenticated,
	}, nil
}

// WithUnauthenticatedHook returns a shallow copy of the client that fires fn
// on 401 responses. Used to bind the shared pipeline to a session manager.
func (c *Client) WithUnauthenticatedHook(fn func()) *Client {
	clone := *c
	clone.onUnauthenticated = fn
	return &clone
}

// CurrentUser fetches the profile for the stored credential. Any non-2xx is
// "not authenticated" from the session manager's point of view.
func (c *Client) CurrentUser(ctx context.Context) (Profile, error) {
	var profile Profile
	if err := c.doJSON(ctx, http.MethodGet, "/users/me", nil, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// LoginGoogle exchanges a Google ID token for a backend-issued credential.
// The caller decides what to do with the returned token; the exchange itself
// does not touch the credential store.
func (c *Client) LoginGoogle(ctx context.Context, idToken string) (string, error) {
	req := struct {
		IDToken string `json:"id_token"`
	}{IDToken: idToken}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/login/google", req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return "", fmt.Errorf("%w: exchange returned no access token", ErrAPI)
	}
	return resp.AccessToken, nil
}

// UpdateRole sets or clears (nil) the signed-in user's role and returns the
// role the backend settled on.
func (c *Client) UpdateRole(ctx context.Context, role *string) (*string, error) {
	req := struct {
		Role *string `json:"role"`
	}{Role: role}
	var resp struct {
		Role *string `json:"role"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/users/role", req, &resp); err != nil {
		return nil, err
	}
	return resp.Role, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Request stage: a stored credential rides along as a bearer header.
	// Absent credential means the request goes out unauthenticated and the
	// backend decides whether the endpoint tolerates that.
	if token, ok := c.store.Get(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(path, "transport_error").Inc()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	metrics.BackendRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	metrics.BackendRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Response stage, invalidation path: the credential is dead no
		// matter which operation sent it. Clear it and let the session
		// layer react; the failure still reaches the caller.
		c.store.Clear(ctx)
		if c.onUnauthenticated != nil {
			c.onUnauthenticated()
		}
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrUnauthenticated, apiError(resp, raw))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %w", method, path, apiError(resp, raw))
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

func apiError(resp *http.Response, raw []byte) *APIError {
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     strings.TrimSpace(resp.Status),
		Summary:    errorSummary(raw),
	}
}

// errorSummary pulls a short human-readable message out of a JSON error
// payload, falling back to the trimmed body.
func errorSummary(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, field := range strings.Split(errorSummaryFields, ",") {
			if v, ok := payload[field].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}

	summary := string(raw)
	if len(summary) > 256 {
		summary = summary[:256]
	}
	return summary
}
