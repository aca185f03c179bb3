package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// Movie is the subset of TMDB movie metadata the application uses.
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
}

// MovieList is the TMDB paged result envelope.
type MovieList struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// UpstreamError carries a non-2xx TMDB response so the HTTP layer can pass
// the payload through instead of swallowing it.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tmdb responded %d: %s", e.StatusCode, e.Body)
}

// Client is a read-only TMDB API client. Nothing it returns is ever
// persisted server-side.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Search runs a movie title search.
func (c *Client) Search(ctx context.Context, query string) (*MovieList, error) {
	var list MovieList
	if err := c.get(ctx, "/search/movie", url.Values{"query": {query}}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Trending returns this week's trending movies.
func (c *Client) Trending(ctx context.Context) (*MovieList, error) {
	var list MovieList
	if err := c.get(ctx, "/trending/movie/week", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Movie fetches details for one movie id.
func (c *Client) Movie(ctx context.Context, id int) (*Movie, error) {
	var movie Movie
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("tmdb api key not configured")
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build tmdb request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request tmdb: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read tmdb response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}
