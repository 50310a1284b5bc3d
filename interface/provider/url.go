package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/airbusgeo/geocube/interface/storage/uri"
)

// URIProvider implements FileProvider for mirrored files (gs://) and local files, using geocube storage strategies
type URIProvider struct {
}

// NewURIProvider creates a new FileProvider for gs:// and local links
func NewURIProvider() *URIProvider {
	return &URIProvider{}
}

// Name implements FileProvider
func (ip *URIProvider) Name() string {
	return "URI"
}

// Supports implements FileProvider
func (ip *URIProvider) Supports(link string) bool {
	l := strings.ToLower(link)
	return strings.HasPrefix(l, "gs://") || strings.HasPrefix(l, "file://") || strings.HasPrefix(l, "/")
}

// Download implements FileProvider
func (ip *URIProvider) Download(ctx context.Context, link, localFile string) error {
	u, err := uri.ParseUri(link)
	if err != nil {
		return fmt.Errorf("URIProvider: %w", err)
	}
	if err = u.DownloadToFile(ctx, localFile); err != nil {
		return fmt.Errorf("URIProvider[%s]: %w", link, err)
	}
	return nil
}
