package opensubtitles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL     = "https://api.opensubtitles.com/api/v1"
	DefaultUserAgent   = "datamaker v0.1.0"
	defaultHTTPTimeout = 45 * time.Second
	maxErrorBody       = 4096
)

// ErrNotConfigured is returned by New when any of the API key, username or
// password is missing.
var ErrNotConfigured = errors.New("opensubtitles: api key, username and password are required")

// Config describes the OpenSubtitles client configuration.
type Config struct {
	APIKey     string       `mapstructure:"api_key"`
	Username   string       `mapstructure:"username"`
	Password   string       `mapstructure:"password"`
	UserAgent  string       `mapstructure:"user_agent"`
	BaseURL    string       `mapstructure:"base_url"`
	HTTPClient *http.Client `mapstructure:"-"`
}

// Configured reports whether all credentials are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" &&
		strings.TrimSpace(c.Username) != "" &&
		c.Password != ""
}

// Client wraps the OpenSubtitles REST API. The user session is established
// lazily by the first call that needs it and kept for the client's lifetime.
type Client struct {
	apiKey    string
	username  string
	password  string
	userAgent string
	baseURL   *url.URL
	http      *http.Client

	loginOnce sync.Once
	token     string
	loginErr  error
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		username:  strings.TrimSpace(cfg.Username),
		password:  cfg.Password,
		userAgent: userAgent,
		baseURL:   baseURL,
		http:      client,
	}, nil
}

// Login establishes the user session. Only the first call talks to the API;
// concurrent and later callers share its outcome, including a failure.
func (c *Client) Login(ctx context.Context) error {
	c.loginOnce.Do(func() {
		c.loginErr = c.login(ctx)
	})
	return c.loginErr
}

func (c *Client) login(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("opensubtitles: encode login request: %w", err)
	}

	endpoint := c.baseURL.JoinPath("login")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("opensubtitles: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req, false)

	var info loginResponse
	if err := c.doJSON(req, "login", &info); err != nil {
		return err
	}
	if info.Token == "" {
		return errors.New("opensubtitles: login response missing token")
	}

	c.token = info.Token
	if host := strings.TrimSpace(info.BaseURL); host != "" && host != c.baseURL.Host {
		c.baseURL = &url.URL{Scheme: c.baseURL.Scheme, Host: host, Path: c.baseURL.Path}
	}
	return nil
}

// SearchRequest describes subtitle discovery filters.
type SearchRequest struct {
	MovieHash string
	Query     string
	Season    int
	Episode   int
}

// Subtitle represents a subtitle candidate returned by OpenSubtitles.
type Subtitle struct {
	ID             string
	FileID         int64
	FileName       string
	Language       string
	Release        string
	Downloads      int
	MovieHashMatch bool
}

// Search queries the OpenSubtitles API for subtitles matching req.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Subtitle, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL.JoinPath("subtitles")
	params := url.Values{}
	if req.MovieHash != "" {
		params.Set("moviehash", req.MovieHash)
	}
	if req.Query != "" {
		params.Set("query", req.Query)
	}
	if req.Season > 0 {
		params.Set("season_number", strconv.Itoa(req.Season))
	}
	if req.Episode > 0 {
		params.Set("episode_number", strconv.Itoa(req.Episode))
	}
	if req.Season > 0 || req.Episode > 0 {
		params.Set("type", "episode")
	}
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: build search request: %w", err)
	}
	c.applyHeaders(httpReq, true)

	var payload searchResponse
	if err := c.doJSON(httpReq, "search", &payload); err != nil {
		return nil, err
	}

	subtitles := make([]Subtitle, 0, len(payload.Data))
	for _, entry := range payload.Data {
		if entry.Attributes.Language == "" || len(entry.Attributes.Files) == 0 {
			continue
		}
		file := entry.Attributes.Files[0]
		if file.FileID == 0 {
			continue
		}
		subtitles = append(subtitles, Subtitle{
			ID:             entry.ID,
			FileID:         file.FileID,
			FileName:       file.FileName,
			Language:       entry.Attributes.Language,
			Release:        entry.Attributes.Release,
			Downloads:      entry.Attributes.DownloadCount,
			MovieHashMatch: entry.Attributes.MovieHashMatch,
		})
	}
	return subtitles, nil
}

// Download resolves the download link of fileID and fetches the subtitle
// payload in SRT format.
func (c *Client) Download(ctx context.Context, fileID int64) ([]byte, error) {
	if fileID <= 0 {
		return nil, errors.New("opensubtitles: invalid file id")
	}
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"file_id":    fileID,
		"sub_format": "srt",
	})
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: encode download request: %w", err)
	}

	endpoint := c.baseURL.JoinPath("download")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: build download request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.applyHeaders(httpReq, true)

	var info downloadResponse
	if err := c.doJSON(httpReq, "download negotiation", &info); err != nil {
		return nil, err
	}
	if info.Link == "" {
		return nil, errors.New("opensubtitles: download response missing link")
	}

	downloadURL, err := endpoint.Parse(info.Link)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: parse download url: %w", err)
	}

	dataReq, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: build link request: %w", err)
	}
	dataReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(dataReq)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: fetch subtitle payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("opensubtitles: subtitle download failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: read subtitle data: %w", err)
	}
	return data, nil
}

func (c *Client) doJSON(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("opensubtitles: %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("opensubtitles: %s failed (%s): %s", op, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("opensubtitles: decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) applyHeaders(req *http.Request, authorized bool) {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if authorized && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

type loginResponse struct {
	Token   string `json:"token"`
	BaseURL string `json:"base_url"`
	Status  int    `json:"status"`
}

type searchResponse struct {
	Data []struct {
		ID         string           `json:"id"`
		Attributes searchAttributes `json:"attributes"`
	} `json:"data"`
}

type searchAttributes struct {
	Language       string       `json:"language"`
	Release        string       `json:"release"`
	DownloadCount  int          `json:"download_count"`
	MovieHashMatch bool         `json:"moviehash_match"`
	Files          []searchFile `json:"files"`
}

type searchFile struct {
	FileID   int64  `json:"file_id"`
	FileName string `json:"file_name"`
}

type downloadResponse struct {
	Link      string `json:"link"`
	FileName  string `json:"file_name"`
	Remaining int    `json:"remaining"`
}
