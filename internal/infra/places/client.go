// Package places implements the HTTP client for the Google Places Details
// endpoint, producing structured errors the classifier consumes directly.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ImGenos/Dm-Placards/internal/core/domain"
)

const (
	// DefaultBaseURL is the Place Details endpoint.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place/details/json"

	// detailFields is the field mask requested from upstream.
	detailFields = "name,rating,user_ratings_total,reviews,place_id"

	// DefaultTimeout bounds a single fetch attempt.
	DefaultTimeout = 15 * time.Second

	// DefaultLanguage requests localized review content.
	DefaultLanguage = "fr"
)

// Config holds Places API settings.
type Config struct {
	APIKey   string        `yaml:"api_key"`
	PlaceID  string        `yaml:"place_id"`
	BaseURL  string        `yaml:"base_url"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Client fetches place details over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
}

// NewClient creates a Places client. Zero-valued config fields fall back
// to defaults.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	language := cfg.Language
	if language == "" {
		language = DefaultLanguage
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		language: language,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type detailsResponse struct {
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Result       *placeResult `json:"result"`
}

type placeResult struct {
	Name             string          `json:"name"`
	Rating           float64         `json:"rating"`
	UserRatingsTotal int             `json:"user_ratings_total"`
	PlaceID          string          `json:"place_id"`
	Reviews          []domain.Review `json:"reviews"`
}

// PlaceDetails fetches the review snapshot for one place ID. Failures come
// back as *domain.PlacesError with the failure mode recorded structurally.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (*domain.PlaceSnapshot, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", detailFields)
	q.Set("key", c.apiKey)
	q.Set("language", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &domain.PlacesError{Kind: domain.KindInvalidRequest, Message: "create request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.PlacesError{
			HTTPStatus: resp.StatusCode,
			Message:    truncate(string(body), 200),
		}
	}

	var parsed detailsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.PlacesError{Kind: domain.KindUnknown, Message: "parse response", Err: err}
	}

	if parsed.Status != "OK" {
		return nil, &domain.PlacesError{APIStatus: parsed.Status, Message: parsed.ErrorMessage}
	}
	if parsed.Result == nil {
		return nil, &domain.PlacesError{Kind: domain.KindUnknown, Message: "response missing result payload"}
	}

	return &domain.PlaceSnapshot{
		Name:         parsed.Result.Name,
		Rating:       parsed.Result.Rating,
		TotalRatings: parsed.Result.UserRatingsTotal,
		PlaceID:      parsed.Result.PlaceID,
		Reviews:      parsed.Result.Reviews,
	}, nil
}

// Close cleans up idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// transportError distinguishes timeouts from other network failures so
// classification never has to parse the message.
func transportError(err error) *domain.PlacesError {
	kind := domain.KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = domain.KindTimeout
	}
	return &domain.PlacesError{Kind: kind, Message: "fetch place details", Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
