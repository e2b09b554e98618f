// Package facebook fetches friend profiles from the Facebook Graph API.
package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// DefaultGraphURL is the versioned Graph API endpoint.
const DefaultGraphURL = "https://graph.facebook.com/v18.0"

// ProfileFields are requested for every friend.
const ProfileFields = "id,name,email,picture,work,education,location,link"

// maxFriendPages bounds how many pages of the friends list are followed.
const maxFriendPages = 50

// ErrCircuitOpen is returned while the Graph API is considered unavailable.
var ErrCircuitOpen = errors.New("graph api circuit breaker is open")

// GraphError is an error response of the Graph API.
type GraphError struct {
	Status  int
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api: %d %s (%s, code %d)", e.Status, e.Message, e.Type, e.Code)
}

// BreakerConfig parameterizes the circuit breaker around Graph API calls.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial request is let through.
	Timeout time.Duration
	// HalfOpenMaxSuccesses is the number of successful trial requests that close the circuit.
	HalfOpenMaxSuccesses uint32
}

// Config parameterizes the client.
type Config struct {
	GraphURL string
	Timeout  time.Duration
	Breaker  BreakerConfig
}

// Client calls the Graph API with a user access token. Server errors and transport failures trip
// the circuit breaker, client errors such as an expired token do not.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a client. Zero values in the configuration are replaced by defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.GraphURL == "" {
		cfg.GraphURL = DefaultGraphURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Breaker.Timeout <= 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Breaker.HalfOpenMaxSuccesses == 0 {
		cfg.Breaker.HalfOpenMaxSuccesses = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.GraphURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graph-api",
		MaxRequests: cfg.Breaker.HalfOpenMaxSuccesses,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			var graphErr *GraphError
			return err == nil || (errors.As(err, &graphErr) && graphErr.Status < http.StatusInternalServerError)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return c
}

// State returns the state of the circuit breaker: closed, open or half-open.
func (c *Client) State() string {
	return c.breaker.State().String()
}

// Friends returns id and name of every friend of the token's user.
func (c *Client) Friends(ctx context.Context, token string) ([]model.Profile, error) {
	type page struct {
		Data   []model.Profile `json:"data"`
		Paging struct {
			Next string `json:"next"`
		} `json:"paging"`
	}
	next := c.baseURL + "/me/friends?" + url.Values{"fields": {"id,name"}}.Encode()
	var friends []model.Profile
	for i := 0; i < maxFriendPages && next != ""; i++ {
		var p page
		if err := c.get(ctx, next, token, &p); err != nil {
			return nil, err
		}
		friends = append(friends, p.Data...)
		next = p.Paging.Next
	}
	return friends, nil
}

// Profile returns the full profile of a user.
func (c *Client) Profile(ctx context.Context, token, id string) (model.Profile, error) {
	var p model.Profile
	u := c.baseURL + "/" + url.PathEscape(id) + "?" + url.Values{"fields": {ProfileFields}}.Encode()
	err := c.get(ctx, u, token, &p)
	return p, err
}

func (c *Client) get(ctx context.Context, u, token string, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, u, token, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (c *Client) do(ctx context.Context, u, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		graphErr := &GraphError{Status: resp.StatusCode}
		var body struct {
			Error *GraphError `json:"error"`
		}
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			body.Error = graphErr
			_ = json.Unmarshal(data, &body)
		}
		c.logger.Debug("graph api error", slog.Int("status", resp.StatusCode), slog.String("message", graphErr.Message))
		return graphErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("graph api: decode response: %w", err)
	}
	return nil
}
