package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cavaliercoder/grab"
)

// HTTPSProvider implements FileProvider for https links protected by an Earthdata bearer token
type HTTPSProvider struct {
	token      string
	httpClient *http.Client
}

// HTTPSOption configures the HTTPSProvider
type HTTPSOption func(*HTTPSProvider)

// WithHTTPClient sets the http client (the redirect policy is overridden to keep the authorization)
func WithHTTPClient(c *http.Client) HTTPSOption {
	return func(ip *HTTPSProvider) { ip.httpClient = c }
}

// NewHTTPSProvider creates a new FileProvider for https links. Token can be empty for public links.
func NewHTTPSProvider(token string, opts ...HTTPSOption) *HTTPSProvider {
	ip := &HTTPSProvider{token: token, httpClient: &http.Client{}}
	for _, o := range opts {
		o(ip)
	}
	return ip
}

// Name implements FileProvider
func (ip *HTTPSProvider) Name() string {
	return "HTTPS"
}

// Supports implements FileProvider
func (ip *HTTPSProvider) Supports(link string) bool {
	l := strings.ToLower(link)
	return strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "http://")
}

// Download implements FileProvider
func (ip *HTTPSProvider) Download(ctx context.Context, link, localFile string) error {
	req, err := grab.NewRequest(localFile, link)
	if err != nil {
		return fmt.Errorf("HTTPSProvider.NewRequest: %w", err)
	}
	req = req.WithContext(ctx)
	if ip.token != "" {
		req.HTTPRequest.Header.Set("Authorization", "Bearer "+ip.token)
	}

	hc := *ip.httpClient
	hc.CheckRedirect = checkRedirectAndCopyAuth
	client := grab.NewClient()
	client.HTTPClient = &hc

	if err := download(ctx, client, req, "HTTPS:"+localFile); err != nil {
		return fmt.Errorf("HTTPSProvider.%w", err)
	}
	return nil
}
