// Package client is a Go client for the watchlist API implementing the
// session-cache behavior of the browser app: a cached token and profile are
// restored optimistically on start, revalidated against the server, attached
// as a bearer credential to every protected call, and torn down locally the
// moment any call comes back 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"movie-watchlist/internal/domain"
	"movie-watchlist/internal/tmdb"
)

// ErrUnauthenticated is returned when the server rejects the session; the
// local cache has already been cleared by the time callers see it.
var ErrUnauthenticated = errors.New("unauthenticated")

// APIError is a non-401 error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server responded %d: %s", e.StatusCode, e.Message)
}

// State describes the session lifecycle. The optimistic state exists only
// for immediate rendering of cached data; it never authorizes anything, the
// real token does.
type State int

const (
	StateUnknown State = iota
	StateOptimistic
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateOptimistic:
		return "optimistic"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Client talks to the watchlist server and maintains the cached session.
type Client struct {
	baseURL string
	http    *http.Client
	store   Store

	mu      sync.Mutex
	state   State
	session *Session
}

func New(baseURL string, store Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
		state:   StateUnknown,
	}
}

// Start restores the cached session and revalidates it. With a cached token
// the client turns optimistic first, so callers can render the cached
// profile before the server has answered; the follow-up /auth/me call then
// either confirms the session or clears it. A transport failure leaves the
// optimistic state in place and is returned to the caller.
func (c *Client) Start(ctx context.Context) error {
	session, err := c.store.Load()
	if err != nil {
		return err
	}
	if session == nil {
		c.setState(StateUnauthenticated, nil)
		return nil
	}

	c.setState(StateOptimistic, session)

	user, err := c.Me(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return nil // cache already cleared, state already downgraded
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			// Account gone; the token verifies but the identity is dead.
			c.clearSession()
			return nil
		}
		return err
	}

	session.User = user
	if err := c.store.Save(session); err != nil {
		return err
	}
	c.setState(StateAuthenticated, session)
	return nil
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentUser returns the cached profile, which in the optimistic state may
// not have been confirmed by the server yet.
func (c *Client) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.User
}

// Signup registers a new account and stores the issued session.
func (c *Client) Signup(ctx context.Context, username, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/signup", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
}

// Login exchanges credentials for a session and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (*User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, path, body, &resp, false); err != nil {
		return nil, err
	}

	session := &Session{Token: resp.Token, User: &resp.User}
	if err := c.store.Save(session); err != nil {
		return nil, err
	}
	c.setState(StateAuthenticated, session)
	return &resp.User, nil
}

// Logout tells the server (best effort) and unconditionally clears the
// local session.
func (c *Client) Logout(ctx context.Context) error {
	_ = c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, false)
	return c.clearSession()
}

// Me asks the server to confirm the cached session.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Watchlist returns the server-side watchlist.
func (c *Client) Watchlist(ctx context.Context) ([]domain.WatchlistEntry, error) {
	return c.watchlistCall(ctx, http.MethodGet, "/api/watchlist", nil)
}

// Add puts a movie on the watchlist, denormalizing the given metadata.
func (c *Client) Add(ctx context.Context, movieID int, title, posterPath, overview string) ([]domain.WatchlistEntry, error) {
	return c.watchlistCall(ctx, http.MethodPost, "/api/watchlist", map[string]any{
		"tmdbId":     movieID,
		"title":      title,
		"posterPath": posterPath,
		"overview":   overview,
	})
}

// Remove deletes a movie from the watchlist; removing an absent id is a
// server-side no-op.
func (c *Client) Remove(ctx context.Context, movieID int) ([]domain.WatchlistEntry, error) {
	return c.watchlistCall(ctx, http.MethodDelete, "/api/watchlist", map[string]any{
		"tmdbId": movieID,
	})
}

// Rate sets the rating of an entry already on the watchlist; the raw [0,10]
// value is sent as-is.
func (c *Client) Rate(ctx context.Context, movieID int, rating float64) ([]domain.WatchlistEntry, error) {
	return c.watchlistCall(ctx, http.MethodPut, "/api/watchlist/rating", map[string]any{
		"tmdbId": movieID,
		"rating": rating,
	})
}

// SetWatched flips the watched flag of an entry.
func (c *Client) SetWatched(ctx context.Context, movieID int, watched bool) ([]domain.WatchlistEntry, error) {
	return c.watchlistCall(ctx, http.MethodPut, "/api/watchlist/watched", map[string]any{
		"tmdbId":  movieID,
		"watched": watched,
	})
}

func (c *Client) watchlistCall(ctx context.Context, method, path string, body any) ([]domain.WatchlistEntry, error) {
	var resp struct {
		Watchlist []domain.WatchlistEntry `json:"watchlist"`
	}
	if err := c.do(ctx, method, path, body, &resp, true); err != nil {
		return nil, err
	}
	return resp.Watchlist, nil
}

// Search queries the movie catalog through the server-side proxy.
func (c *Client) Search(ctx context.Context, query string) (*tmdb.MovieList, error) {
	var list tmdb.MovieList
	path := "/api/tmdb/search?query=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &list, false); err != nil {
		return nil, err
	}
	return &list, nil
}

// Trending fetches this week's trending movies through the proxy.
func (c *Client) Trending(ctx context.Context) (*tmdb.MovieList, error) {
	var list tmdb.MovieList
	if err := c.do(ctx, http.MethodGet, "/api/tmdb/trending", nil, &list, false); err != nil {
		return nil, err
	}
	return &list, nil
}

// RatingFromStars maps the five half-star UI units onto the stored [0,10]
// scale; StarsFromRating is its inverse. The server is agnostic to stars.
func RatingFromStars(stars float64) float64 { return stars * 2 }

func StarsFromRating(rating float64) float64 { return rating / 2 }

// do performs one request, attaching the cached bearer token when present.
// A 401 on anything but the auth endpoints themselves tears the session
// down locally, the client-side equivalent of the redirect-to-login
// interceptor (the auth endpoints are exempt to avoid tearing down state
// the user is in the middle of establishing).
func (c *Client) do(ctx context.Context, method, path string, body, out any, protected bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if protected {
			_ = c.clearSession()
		}
		return ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &errBody)
		if errBody.Error == "" {
			errBody.Error = string(data)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

func (c *Client) setState(state State, session *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.session = session
}

func (c *Client) clearSession() error {
	c.setState(StateUnauthenticated, nil)
	return c.store.Clear()
}
