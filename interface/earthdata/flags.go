package earthdata

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/airbusgeo/opera-mosaic/common"
)

// Config is the command-line configuration of the Earthdata access
type Config struct {
	SessionConfig
	URSURL string
	Access common.Access
}

// SetFlags configures flag for an Earthdata config
// Usage:
// var cfg Config
// cfg.SetFlags()
// flag.Parse()
func (cfg *Config) SetFlags() {
	flag.StringVar(&cfg.Credentials.Token, "earthdata-token", "", "Earthdata Login token (default: "+EnvToken+")")
	flag.StringVar(&cfg.Credentials.Username, "earthdata-username", "", "Earthdata Login username (default: "+EnvUsername+")")
	flag.StringVar(&cfg.Credentials.Password, "earthdata-password", "", "Earthdata Login password (default: "+EnvPassword+")")
	flag.StringVar(&cfg.NetrcPath, "netrc", "", "netrc file with the credentials of "+URSMachine+" (default: ~/.netrc)")
	flag.StringVar((*string)(&cfg.DAAC), "daac", "", "DAAC delivering the temporary S3 credentials (PODAAC, LPCLOUD, ASF). Default: https-only access")
	flag.StringVar(&cfg.Region, "region", DefaultRegion, "region of the Earthdata buckets")
	flag.StringVar(&cfg.CookieFile, "cookie-file", "", "cookie file shared with GDAL (default: ~/cookies.txt)")
	flag.BoolVar(&cfg.UnsafeSSL, "unsafe-ssl", false, "do not check the certificates of the remote servers")
	flag.StringVar(&cfg.URSURL, "urs-url", DefaultURSURL, "Earthdata Login server")
	flag.StringVar((*string)(&cfg.Access), "access", string(common.AccessExternal), "access to the files: external (https) or direct (s3, in-region only)")
}

// Validate checks the access mode
func (cfg *Config) Validate() error {
	switch cfg.Access {
	case common.AccessExternal:
	case common.AccessDirect:
		if cfg.DAAC == "" {
			return fmt.Errorf("-access=direct requires a -daac")
		}
	default:
		return fmt.Errorf("unknown access: %s", cfg.Access)
	}
	return nil
}

// Sessions delivers a session, renewed when its S3 credentials are about to expire
type Sessions struct {
	client *Client
	config SessionConfig
	margin time.Duration

	mu      sync.Mutex
	session *Session
}

// NewSessions creates the session factory of the config
func (cfg *Config) NewSessions(hc *http.Client) *Sessions {
	return &Sessions{
		client: NewClient(WithURSURL(cfg.URSURL), WithHTTPClient(hc)),
		config: cfg.SessionConfig,
		margin: 5 * time.Minute,
	}
}

// Get returns the current session or a new one
func (s *Sessions) Get(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && !s.session.Expired(time.Now().Add(s.margin)) {
		return s.session, nil
	}
	session, err := NewSession(ctx, s.client, s.config)
	if err != nil {
		return nil, fmt.Errorf("Sessions.Get.%w", err)
	}
	s.session = session
	return session, nil
}
