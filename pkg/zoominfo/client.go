package zoominfo

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is the public company-data API endpoint.
const DefaultBaseURL = "https://api.zoominfo.com"

// Config controls how a Client reaches the API.
type Config struct {
	// BaseURL defaults to DefaultBaseURL. A bare hostname is treated as https.
	BaseURL string
	// CAPath is an optional PEM bundle used as the TLS trust store (proxies, test rigs).
	CAPath string
	// UserAgent is sent on every request when set.
	UserAgent string
	// Timeout bounds each HTTP exchange. Defaults to 60s.
	Timeout time.Duration
}

// Client is a minimal HTTP client for the authenticate and company search endpoints.
//
// It holds no token: callers pass the bearer token to each lookup so that a token
// never outlives the run that acquired it.
type Client struct {
	baseURL   *url.URL
	userAgent string
	http      *http.Client
}

// NewClient constructs a client for cfg.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := parseBaseURL(raw)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc, err := newHTTPClient(cfg.CAPath, timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   base,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		http:      hc,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse zoominfo base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("zoominfo base URL must include a host (got %q)", raw)
	}
	// Ensure the base path ends with a slash so ResolveReference treats it as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newHTTPClient(caPath string, timeout time.Duration) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if strings.TrimSpace(caPath) != "" {
		b, err := os.ReadFile(strings.TrimSpace(caPath))
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, fmt.Errorf("parse CA bundle PEM: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

func (c *Client) resolve(p string) *url.URL {
	return c.baseURL.ResolveReference(&url.URL{Path: strings.TrimLeft(p, "/")})
}

type authenticateRequest struct {
	ClientID   string `json:"clientId"`
	PrivateKey string `json:"privateKey"`
}

type authenticateResponse struct {
	JWT string `json:"jwt"`
}

// Authenticate exchanges client credentials for a short-lived JWT.
func (c *Client) Authenticate(ctx context.Context, clientID, privateKey string) (string, error) {
	body, err := json.Marshal(authenticateRequest{ClientID: clientID, PrivateKey: privateKey})
	if err != nil {
		return "", err
	}

	u := c.resolve("authenticate")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.setUserAgent(req)

	b, resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", newHTTPError("authenticate", resp, b)
	}

	var out authenticateResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("parse authenticate response: %w", err)
	}
	token := strings.TrimSpace(out.JWT)
	if token == "" {
		return "", fmt.Errorf("authenticate response missing jwt")
	}
	return token, nil
}

// SearchCompany looks up companies by name. The API decides matching and ordering.
func (c *Client) SearchCompany(ctx context.Context, token, companyName string) (SearchResponse, error) {
	q := url.Values{}
	q.Set("companyName", companyName)

	u := c.resolve("search/company")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return SearchResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Accept", "application/json")
	c.setUserAgent(req)

	b, resp, err := c.do(req)
	if err != nil {
		return SearchResponse{}, err
	}
	if resp.StatusCode/100 != 2 {
		return SearchResponse{}, newHTTPError("searchCompany", resp, b)
	}

	var out SearchResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return SearchResponse{}, fmt.Errorf("parse company search response: %w", err)
	}
	return out, nil
}

func (c *Client) do(req *http.Request) ([]byte, *http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, err
	}
	return b, resp, nil
}

func (c *Client) setUserAgent(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
