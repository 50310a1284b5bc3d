package earthdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/araddon/dateparse"
	"golang.org/x/oauth2"
)

// DefaultURSURL is the Earthdata Login server
const DefaultURSURL = "https://urs.earthdata.nasa.gov"

// Client requests Earthdata Login tokens and DAAC temporary S3 credentials
type Client struct {
	ursURL     string
	httpClient *http.Client
	nbRetries  int
}

// Option configures a Client
type Option func(*Client)

// WithURSURL overrides DefaultURSURL
func WithURSURL(u string) Option {
	return func(c *Client) { c.ursURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets the http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetries sets the number of retries in case of temporary errors (default: 3)
func WithRetries(n int) Option {
	return func(c *Client) { c.nbRetries = n }
}

// NewClient creates a Client
func NewClient(opts ...Option) *Client {
	c := &Client{
		ursURL:     DefaultURSURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		nbRetries:  3,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Token is an Earthdata Login bearer token
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiration  time.Time `json:"-"`
}

// Login returns the token of the credentials: the given token or a token created with the username/password
func (c *Client) Login(ctx context.Context, creds Credentials) (Token, error) {
	if creds.Token != "" {
		return Token{AccessToken: creds.Token, TokenType: "Bearer"}, nil
	}
	if !creds.Valid() {
		return Token{}, ErrNoCredentials
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ursURL+"/api/users/find_or_create_token", nil)
	if err != nil {
		return Token{}, fmt.Errorf("Login.NewRequest: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	body, _, err := service.DoRetry(c.httpClient, req, c.nbRetries)
	if err != nil {
		return Token{}, fmt.Errorf("Login.%w", err)
	}
	var resp struct {
		Token
		ExpirationDate string `json:"expiration_date"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Token{}, fmt.Errorf("Login.Unmarshal: %w", err)
	}
	if resp.AccessToken == "" {
		return Token{}, fmt.Errorf("Login: empty token")
	}
	if resp.ExpirationDate != "" {
		if resp.Expiration, err = dateparse.ParseAny(resp.ExpirationDate); err != nil {
			return Token{}, fmt.Errorf("Login.ParseExpiration[%s]: %w", resp.ExpirationDate, err)
		}
	}
	return resp.Token, nil
}

// S3Credentials are temporary credentials to read the protected buckets of a DAAC (in region us-west-2)
type S3Credentials struct {
	AccessKeyID     string    `json:"accessKeyId"`
	SecretAccessKey string    `json:"secretAccessKey"`
	SessionToken    string    `json:"sessionToken"`
	Expiration      time.Time `json:"-"`
}

// S3Credentials requests temporary S3 credentials to the endpoint of a DAAC (see common.DAAC), authenticated with the token
func (c *Client) S3Credentials(ctx context.Context, endpoint string, token Token) (*S3Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("S3Credentials.NewRequest: %w", err)
	}
	body, _, err := service.DoRetry(c.bearerClient(ctx, token), req, c.nbRetries)
	if err != nil {
		return nil, fmt.Errorf("S3Credentials[%s].%w", endpoint, err)
	}
	var resp struct {
		S3Credentials
		Expiration string `json:"expiration"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("S3Credentials.Unmarshal: %w", err)
	}
	if resp.AccessKeyID == "" || resp.SecretAccessKey == "" {
		return nil, fmt.Errorf("S3Credentials[%s]: incomplete credentials", endpoint)
	}
	if resp.Expiration != "" {
		// e.g. 2024-01-27 21:52:55+00:00
		if resp.S3Credentials.Expiration, err = dateparse.ParseAny(resp.Expiration); err != nil {
			return nil, fmt.Errorf("S3Credentials.ParseExpiration[%s]: %w", resp.Expiration, err)
		}
	}
	return &resp.S3Credentials, nil
}

// bearerClient returns an http client adding the token to the requests (and copying it on redirects)
func (c *Client) bearerClient(ctx context.Context, token Token) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.AccessToken, TokenType: "Bearer"}))
	hc.Timeout = c.httpClient.Timeout
	return hc
}
