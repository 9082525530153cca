// Package wordpress publishes posts through the WordPress REST API using
// application-password authentication.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/seo"
)

// Config holds the connection settings for a WordPress site.
type Config struct {
	BaseURL       string
	Username      string
	AppPassword   string
	Timeout       time.Duration
	DefaultStatus string
	UserAgent     string
}

// Client talks to a single WordPress site. It implements seo.PostPublisher.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger *zap.Logger
}

var _ seo.PostPublisher = (*Client)(nil)

// apiError is the error envelope the WordPress REST API returns.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// postPayload is the request body for POST /wp/v2/posts.
type postPayload struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Status     string `json:"status"`
	Slug       string `json:"slug,omitempty"`
	Excerpt    string `json:"excerpt,omitempty"`
	Categories []int  `json:"categories,omitempty"`
	Tags       []int  `json:"tags,omitempty"`
}

// postResponse is the subset of the created-post response we surface.
type postResponse struct {
	ID     int    `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

// New builds a client for the configured site.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("wordpress: base url is required")
	}
	if cfg.Username == "" || cfg.AppPassword == "" {
		return nil, fmt.Errorf("wordpress: username and application password are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DefaultStatus == "" {
		cfg.DefaultStatus = "draft"
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetBasicAuth(cfg.Username, cfg.AppPassword).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Client{http: httpClient, cfg: cfg, logger: logger}, nil
}

// CreatePost publishes a post and returns its ID and permalink.
func (c *Client) CreatePost(ctx context.Context, req seo.PublishRequest) (seo.PublishResult, error) {
	if strings.TrimSpace(req.Title) == "" {
		return seo.PublishResult{}, fmt.Errorf("wordpress: post title is required")
	}
	status := req.Status
	if status == "" {
		status = c.cfg.DefaultStatus
	}

	var (
		created postResponse
		wpErr   apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(postPayload{
			Title:      req.Title,
			Content:    req.Content,
			Status:     status,
			Slug:       req.Slug,
			Excerpt:    req.Excerpt,
			Categories: req.Categories,
			Tags:       req.Tags,
		}).
		SetResult(&created).
		SetError(&wpErr).
		Post("/wp-json/wp/v2/posts")
	if err != nil {
		return seo.PublishResult{}, fmt.Errorf("wordpress: request failed: %w", err)
	}
	if resp.IsError() {
		return seo.PublishResult{}, c.normalizeError(resp, wpErr)
	}
	if created.ID == 0 {
		return seo.PublishResult{}, fmt.Errorf("wordpress: unexpected response: missing post id")
	}

	c.logger.Info("post created",
		zap.Int("post_id", created.ID),
		zap.String("status", created.Status),
		zap.String("link", created.Link),
	)
	return seo.PublishResult{
		PostID: created.ID,
		Link:   created.Link,
		Status: created.Status,
	}, nil
}

// Post is one entry from GET /wp/v2/posts.
type Post struct {
	ID     int    `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
	Title  string `json:"title"`
}

// postListItem carries the rendered-title envelope of the list endpoint.
type postListItem struct {
	ID     int    `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
	Title  struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
}

// ListPosts fetches recent posts, newest first. perPage <= 0 uses the API
// default.
func (c *Client) ListPosts(ctx context.Context, perPage int) ([]Post, error) {
	var (
		items []postListItem
		wpErr apiError
	)
	req := c.http.R().
		SetContext(ctx).
		SetResult(&items).
		SetError(&wpErr)
	if perPage > 0 {
		req.SetQueryParam("per_page", fmt.Sprint(perPage))
	}
	resp, err := req.Get("/wp-json/wp/v2/posts")
	if err != nil {
		return nil, fmt.Errorf("wordpress: request failed: %w", err)
	}
	if resp.IsError() {
		return nil, c.normalizeError(resp, wpErr)
	}
	posts := make([]Post, 0, len(items))
	for _, item := range items {
		posts = append(posts, Post{
			ID:     item.ID,
			Link:   item.Link,
			Status: item.Status,
			Title:  item.Title.Rendered,
		})
	}
	return posts, nil
}

// CheckAuth verifies the credentials by fetching the authenticated user.
func (c *Client) CheckAuth(ctx context.Context) error {
	var wpErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&wpErr).
		Get("/wp-json/wp/v2/users/me")
	if err != nil {
		return fmt.Errorf("wordpress: request failed: %w", err)
	}
	if resp.IsError() {
		return c.normalizeError(resp, wpErr)
	}
	return nil
}

// normalizeError turns WordPress error envelopes into messages an operator
// can act on.
func (c *Client) normalizeError(resp *resty.Response, wpErr apiError) error {
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return fmt.Errorf("wordpress: authentication rejected (status 401): check the username and application password")
	case http.StatusForbidden:
		return fmt.Errorf("wordpress: access forbidden (status 403): the user lacks permission or application passwords are disabled on the site")
	case http.StatusNotFound:
		return fmt.Errorf("wordpress: REST API not found at %s: check the site URL and that permalinks are enabled", c.cfg.BaseURL)
	}
	if wpErr.Message != "" {
		return fmt.Errorf("wordpress: %s (%s, status %d)", wpErr.Message, wpErr.Code, resp.StatusCode())
	}
	// Some setups return HTML error pages instead of the JSON envelope.
	body := strings.TrimSpace(string(resp.Body()))
	if len(body) > 200 {
		body = body[:200]
	}
	if json.Valid([]byte(body)) && body != "" {
		return fmt.Errorf("wordpress: status %d: %s", resp.StatusCode(), body)
	}
	return fmt.Errorf("wordpress: unexpected status %d", resp.StatusCode())
}
