package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"movie-watchlist/internal/auth"
	"movie-watchlist/internal/domain"
	"movie-watchlist/internal/repository/memory"
	"movie-watchlist/internal/service"
	"movie-watchlist/internal/tmdb"
)

type stubCatalog struct {
	list *tmdb.MovieList
	err  error
}

func (s *stubCatalog) Search(ctx context.Context, query string) (*tmdb.MovieList, error) {
	return s.list, s.err
}

func (s *stubCatalog) Trending(ctx context.Context) (*tmdb.MovieList, error) {
	return s.list, s.err
}

func (s *stubCatalog) Movie(ctx context.Context, id int) (*tmdb.Movie, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &s.list.Results[0], nil
}

type fixture struct {
	router  *gin.Engine
	issuer  *auth.Issuer
	repo    *memory.UserRepository
	catalog *stubCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := memory.NewUserRepository()
	issuer := auth.NewIssuer("test-secret", 0)
	catalog := &stubCatalog{list: &tmdb.MovieList{Results: []tmdb.Movie{{ID: 550, Title: "Fight Club"}}}}

	handler := NewHandler(
		service.NewUserService(repo),
		service.NewWatchlistService(repo),
		catalog,
		issuer,
		nil,
		logger,
	)

	router := gin.New()
	handler.RegisterRoutes(router)
	return &fixture{router: router, issuer: issuer, repo: repo, catalog: catalog}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) signup(t *testing.T, username, email string) (token string, user UserResponse) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": username,
		"email":    email,
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Token string       `json:"token"`
		User  UserResponse `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	return resp.Token, resp.User
}

func decodeWatchlist(t *testing.T, rec *httptest.ResponseRecorder) []domain.WatchlistEntry {
	t.Helper()
	var resp struct {
		Watchlist []domain.WatchlistEntry `json:"watchlist"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode watchlist response: %v", err)
	}
	return resp.Watchlist
}

func TestSignupTokenResolvesToCreatedUser(t *testing.T) {
	f := newFixture(t)
	token, user := f.signup(t, "alice", "alice@example.com")

	claims, err := f.issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse issued token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("token user id = %q, want %q", claims.UserID, user.ID)
	}
	if claims.Username != "alice" {
		t.Errorf("token username = %q, want alice", claims.Username)
	}
}

func TestSignupValidationAndConflict(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "alice", "alice@example.com")

	for _, tc := range []struct {
		name string
		body gin.H
	}{
		{"missing username", gin.H{"email": "x@y.com", "password": "secret123"}},
		{"bad email", gin.H{"username": "bob", "email": "nope", "password": "secret123"}},
		{"short password", gin.H{"username": "bob", "email": "b@y.com", "password": "abc"}},
		{"duplicate", gin.H{"username": "alice", "email": "alice@example.com", "password": "secret123"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/auth/signup", "", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	_, user := f.signup(t, "alice", "alice@example.com")

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body)
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.User.ID != user.ID {
		t.Errorf("login user id = %q, want %q", resp.User.ID, user.ID)
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-password"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad login status = %d, want 400", rec.Code)
	}
}

func TestAuthRejectionsAreUniform(t *testing.T) {
	f := newFixture(t)

	foreign, err := auth.NewIssuer("other-secret", 0).Sign("66f0c4b2a1d3e45f67890abc", "mallory")
	if err != nil {
		t.Fatalf("sign foreign token: %v", err)
	}

	var bodies []string
	for _, tc := range []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"empty bearer", "Bearer "},
		{"malformed token", "Bearer not.a.token"},
		{"raw garbage", "garbage"},
		{"foreign secret", "Bearer " + foreign},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/watchlist", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			bodies = append(bodies, rec.Body.String())
		})
	}

	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("rejection bodies differ: %q vs %q; callers must not learn which check failed", bodies[0], bodies[i])
		}
	}
}

func TestWatchlistScenario(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup(t, "alice", "alice@example.com")

	add := gin.H{"tmdbId": 550, "title": "Fight Club", "posterPath": "/f.jpg", "overview": "An insomniac office worker..."}

	rec := f.do(t, http.MethodPost, "/api/watchlist", token, add)
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body)
	}
	if entries := decodeWatchlist(t, rec); len(entries) != 1 || entries[0].TMDBID != 550 {
		t.Fatalf("watchlist after add = %+v", entries)
	}

	rec = f.do(t, http.MethodPost, "/api/watchlist", token, add)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate add status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/watchlist", token, nil)
	if entries := decodeWatchlist(t, rec); len(entries) != 1 {
		t.Fatalf("watchlist after rejected duplicate = %+v, want one entry", entries)
	}

	rec = f.do(t, http.MethodPut, "/api/watchlist/rating", token, gin.H{"tmdbId": 550, "rating": 8.5})
	if rec.Code != http.StatusOK {
		t.Fatalf("rate status = %d, body %s", rec.Code, rec.Body)
	}
	if entries := decodeWatchlist(t, rec); entries[0].Rating == nil || *entries[0].Rating != 8.5 {
		t.Fatalf("rating = %v, want 8.5", entries[0].Rating)
	}

	rec = f.do(t, http.MethodDelete, "/api/watchlist", token, gin.H{"tmdbId": 550})
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d, body %s", rec.Code, rec.Body)
	}
	if entries := decodeWatchlist(t, rec); len(entries) != 0 {
		t.Fatalf("watchlist after remove = %+v, want empty", entries)
	}

	rec = f.do(t, http.MethodDelete, "/api/watchlist", token, gin.H{"tmdbId": 550})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat remove status = %d, want 200 no-op", rec.Code)
	}
	if entries := decodeWatchlist(t, rec); len(entries) != 0 {
		t.Fatalf("watchlist after repeat remove = %+v, want empty", entries)
	}
}

func TestRatingPrecisionSurvivesHTTP(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup(t, "alice", "alice@example.com")

	f.do(t, http.MethodPost, "/api/watchlist", token, gin.H{"tmdbId": 550, "title": "Fight Club"})
	f.do(t, http.MethodPut, "/api/watchlist/rating", token, gin.H{"tmdbId": 550, "rating": 7.5})

	rec := f.do(t, http.MethodGet, "/api/watchlist", token, nil)
	entries := decodeWatchlist(t, rec)
	if entries[0].Rating == nil || *entries[0].Rating != 7.5 {
		t.Errorf("rating = %v, want exactly 7.5 through the full round trip", entries[0].Rating)
	}
}

func TestRateAbsentEntryIsNotFound(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup(t, "alice", "alice@example.com")

	rec := f.do(t, http.MethodPut, "/api/watchlist/rating", token, gin.H{"tmdbId": 603, "rating": 9.0})
	if rec.Code != http.StatusNotFound {
		t.Errorf("rate absent status = %d, want 404 (body %s)", rec.Code, rec.Body)
	}
}

func TestRemoveByPath(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup(t, "alice", "alice@example.com")

	f.do(t, http.MethodPost, "/api/watchlist", token, gin.H{"tmdbId": 550, "title": "Fight Club"})

	rec := f.do(t, http.MethodDelete, "/api/watchlist/550", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove by path status = %d, body %s", rec.Code, rec.Body)
	}
	if entries := decodeWatchlist(t, rec); len(entries) != 0 {
		t.Errorf("watchlist = %+v, want empty", entries)
	}
}

func TestMeAndDeletedUser(t *testing.T) {
	f := newFixture(t)
	token, user := f.signup(t, "alice", "alice@example.com")

	rec := f.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", rec.Code, rec.Body)
	}

	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		t.Fatalf("parse user id: %v", err)
	}
	f.repo.Delete(oid)

	// The token still verifies, but the identity no longer resolves.
	rec = f.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("me after delete status = %d, want 404", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/watchlist", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("watchlist after delete status = %d, want 404", rec.Code)
	}
}

func TestCatalogProxy(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/tmdb/search?query=fight+club", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodGet, "/api/tmdb/search", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("search without query status = %d, want 400", rec.Code)
	}

	f.catalog.err = &tmdb.UpstreamError{StatusCode: 401, Body: []byte(`{"status_message":"Invalid API key"}`)}
	rec = f.do(t, http.MethodGet, "/api/tmdb/trending", "", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("trending with upstream failure status = %d, want 502", rec.Code)
	}
	if rec.Body.String() != `{"status_message":"Invalid API key"}` {
		t.Errorf("upstream payload not passed through: %s", rec.Body)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Status != "ok" {
		t.Errorf("health body = %s", rec.Body)
	}
}
