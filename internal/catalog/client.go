// ABOUTME: Strapi content API client for artworks, exhibitions and media
// ABOUTME: Retries transient failures with backoff, parses v4 and v5 payloads
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/harper/artmatch/internal/models"
	"github.com/harper/artmatch/internal/util"
)

// ErrNotFound is returned when the catalog has no matching record
var ErrNotFound = errors.New("not found")

// MaxImageBytes bounds a single image download
const MaxImageBytes = 32 << 20

// MaxResponseBytes bounds a single API response
const MaxResponseBytes = 16 << 20

const pageSize = 100

// StatusError is a non-2xx response from the catalog
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// Retryable reports whether the request may succeed if repeated
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to a Strapi instance
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetries sets retry count and base backoff delay
func WithRetries(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a catalog client for the Strapi instance at baseURL
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
		retryDelay: 2 * time.Second,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the catalog root used to resolve relative media URLs
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListArtworks returns every artwork, following pagination
func (c *Client) ListArtworks(ctx context.Context) ([]models.Artwork, error) {
	var artworks []models.Artwork

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("populate", "*")
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[pageSize]", strconv.Itoa(pageSize))

		body, err := c.getJSON(ctx, "/api/artworks", q)
		if err != nil {
			return nil, fmt.Errorf("listing artworks: %w", err)
		}

		doc := gjson.ParseBytes(body)
		for _, item := range doc.Get("data").Array() {
			artworks = append(artworks, c.parseArtwork(item))
		}

		if page >= int(doc.Get("meta.pagination.pageCount").Int()) {
			break
		}
	}

	c.log.Debug().Int("count", len(artworks)).Msg("listed artworks")
	return artworks, nil
}

// GetArtwork fetches one artwork by numeric id or document id
func (c *Client) GetArtwork(ctx context.Context, id string) (*models.Artwork, error) {
	if id == "" {
		return nil, fmt.Errorf("artwork id is required")
	}
	q := url.Values{}
	q.Set("populate", "*")

	body, err := c.getJSON(ctx, "/api/artworks/"+url.PathEscape(id), q)
	if err != nil {
		return nil, fmt.Errorf("getting artwork %s: %w", id, err)
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil, fmt.Errorf("artwork %s: %w", id, ErrNotFound)
	}
	art := c.parseArtwork(data)
	return &art, nil
}

// FindArtworkBySlug fetches the artwork whose slug equals slug
func (c *Client) FindArtworkBySlug(ctx context.Context, slug string) (*models.Artwork, error) {
	if slug == "" {
		return nil, fmt.Errorf("slug is required")
	}
	q := url.Values{}
	q.Set("populate", "*")
	q.Set("filters[slug][$eq]", slug)

	body, err := c.getJSON(ctx, "/api/artworks", q)
	if err != nil {
		return nil, fmt.Errorf("finding artwork %q: %w", slug, err)
	}

	items := gjson.GetBytes(body, "data").Array()
	if len(items) == 0 {
		return nil, fmt.Errorf("artwork %q: %w", slug, ErrNotFound)
	}
	art := c.parseArtwork(items[0])
	return &art, nil
}

// ListExhibitions returns every exhibition with its cover image
func (c *Client) ListExhibitions(ctx context.Context) ([]models.Exhibition, error) {
	var exhibitions []models.Exhibition

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("populate", "coverImage")
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[pageSize]", strconv.Itoa(pageSize))

		body, err := c.getJSON(ctx, "/api/exhibitions", q)
		if err != nil {
			return nil, fmt.Errorf("listing exhibitions: %w", err)
		}

		doc := gjson.ParseBytes(body)
		for _, item := range doc.Get("data").Array() {
			exhibitions = append(exhibitions, c.parseExhibition(item))
		}

		if page >= int(doc.Get("meta.pagination.pageCount").Int()) {
			break
		}
	}

	return exhibitions, nil
}

// DownloadImage fetches a media file. Relative URLs are resolved against the base URL.
func (c *Client) DownloadImage(ctx context.Context, rawURL string) ([]byte, error) {
	target := c.resolveURL(rawURL)
	if target == "" {
		return nil, fmt.Errorf("image url is required")
	}

	var data []byte
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		resp, err := c.do(ctx, target)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if err := checkStatus(resp, target); err != nil {
			return err
		}

		data, err = io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		if len(data) > MaxImageBytes {
			return util.Permanent(fmt.Errorf("image %s exceeds %d bytes", target, MaxImageBytes))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// getJSON performs a GET against the API with retries
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body []byte
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		resp, err := c.do(ctx, target)
		if err != nil {
			c.log.Warn().Err(err).Str("url", target).Msg("catalog request failed")
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if err := checkStatus(resp, target); err != nil {
			c.log.Warn().Err(err).Msg("catalog returned error status")
			return err
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if len(body) > MaxResponseBytes {
			return util.Permanent(fmt.Errorf("GET %s: response exceeds %d bytes", target, MaxResponseBytes))
		}
		if !gjson.ValidBytes(body) {
			return util.Permanent(fmt.Errorf("GET %s: invalid JSON response", target))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" && c.sameOrigin(req.URL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

// sameOrigin reports whether u has the scheme and host of the base URL.
// The token is only ever sent to the catalog itself.
func (c *Client) sameOrigin(u *url.URL) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil || base.Host == "" {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

// checkStatus turns non-2xx responses into errors, permanent unless retryable
func checkStatus(resp *http.Response, target string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := &StatusError{
		StatusCode: resp.StatusCode,
		URL:        target,
		Body:       strings.TrimSpace(string(snippet)),
	}
	if resp.StatusCode == http.StatusNotFound {
		return util.Permanent(fmt.Errorf("%w: %w", ErrNotFound, statusErr))
	}
	if statusErr.Retryable() {
		return statusErr
	}
	return util.Permanent(statusErr)
}
