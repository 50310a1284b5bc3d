package earthdata

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.uber.org/zap"
)

const (
	// DefaultRegion is the region of the Earthdata cloud buckets
	DefaultRegion = "us-west-2"
)

// Session holds the credentials and endpoint settings used to access the remote files.
// It is passed explicitly to the raster toolkit and the download providers.
type Session struct {
	Token      Token
	S3         *S3Credentials // nil if the session has no direct s3 access
	Region     string
	CookieFile string
	UnsafeSSL  bool
}

// SessionConfig configures NewSession
type SessionConfig struct {
	Credentials Credentials
	NetrcPath   string
	DAAC        common.DAAC // DAAC delivering the S3 credentials. If empty, the session is https-only.
	Region      string      // Default: DefaultRegion
	CookieFile  string      // Default: ~/cookies.txt
	UnsafeSSL   bool
}

// NewSession logs in to Earthdata and, if a DAAC is configured, gets its temporary S3 credentials.
func NewSession(ctx context.Context, client *Client, cfg SessionConfig) (*Session, error) {
	creds, err := LoadCredentials(cfg.Credentials, cfg.NetrcPath)
	if err != nil {
		return nil, fmt.Errorf("NewSession.%w", err)
	}
	token, err := client.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("NewSession.%w", err)
	}
	s := &Session{
		Token:      token,
		Region:     cfg.Region,
		CookieFile: cfg.CookieFile,
		UnsafeSSL:  cfg.UnsafeSSL,
	}
	if s.Region == "" {
		s.Region = DefaultRegion
	}
	if s.CookieFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.CookieFile = filepath.Join(home, "cookies.txt")
		}
	}
	if cfg.DAAC != "" {
		endpoint, err := cfg.DAAC.S3CredentialsEndpoint()
		if err != nil {
			return nil, fmt.Errorf("NewSession.%w", err)
		}
		if s.S3, err = client.S3Credentials(ctx, endpoint, token); err != nil {
			return nil, fmt.Errorf("NewSession.%w", err)
		}
		log.Logger(ctx).Debug("s3 credentials", zap.String("daac", string(cfg.DAAC)), zap.Time("expiration", s.S3.Expiration))
	}
	return s, nil
}

// ConfigOptions returns the GDAL configuration options (KEY=VALUE) of the session
func (s *Session) ConfigOptions() []string {
	var opts []string
	if s.S3 != nil {
		opts = append(opts,
			"AWS_ACCESS_KEY_ID="+s.S3.AccessKeyID,
			"AWS_SECRET_ACCESS_KEY="+s.S3.SecretAccessKey,
			"AWS_SESSION_TOKEN="+s.S3.SessionToken,
			"AWS_REGION="+s.Region,
			"AWS_S3_ENDPOINT=s3."+s.Region+".amazonaws.com",
		)
	}
	opts = append(opts,
		"GDAL_DISABLE_READDIR_ON_OPEN=EMPTY_DIR",
		"CPL_VSIL_CURL_ALLOWED_EXTENSIONS=.tif,.TIF,.tiff,.TIFF",
	)
	if s.Token.AccessToken != "" {
		opts = append(opts, "GDAL_HTTP_HEADERS=Authorization: Bearer "+s.Token.AccessToken)
	}
	if s.CookieFile != "" {
		opts = append(opts, "GDAL_HTTP_COOKIEFILE="+s.CookieFile, "GDAL_HTTP_COOKIEJAR="+s.CookieFile)
	}
	if s.UnsafeSSL {
		opts = append(opts, "GDAL_HTTP_UNSAFESSL=YES")
	}
	return opts
}

// Expired returns true if the S3 credentials expire before t
func (s *Session) Expired(t time.Time) bool {
	return s.S3 != nil && !s.S3.Expiration.IsZero() && s.S3.Expiration.Before(t)
}

// AWSConfig returns the aws config using the temporary S3 credentials
func (s *Session) AWSConfig() (aws.Config, error) {
	if s.S3 == nil {
		return aws.Config{}, fmt.Errorf("AWSConfig: session without s3 credentials")
	}
	return aws.Config{
		Region:      s.Region,
		Credentials: credentials.NewStaticCredentialsProvider(s.S3.AccessKeyID, s.S3.SecretAccessKey, s.S3.SessionToken),
	}, nil
}

// Authorize adds the bearer token to the request
func (s *Session) Authorize(req *http.Request) {
	if s.Token.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token.AccessToken)
	}
}
