package provider

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

var content = []byte(strings.Repeat("OPERA", 1000))

func tempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "provider")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestHTTPSProvider(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/redirect/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/"+filepath.Base(r.URL.Path), http.StatusFound)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if filepath.Base(r.URL.Path) != "file.tif" {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "file.tif", time.Time{}, bytes.NewReader(content))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := tempDir(t)
	defer os.RemoveAll(dir)

	ip := NewHTTPSProvider("token")
	if !ip.Supports(ts.URL+"/files/file.tif") || ip.Supports("s3://bucket/file.tif") {
		t.Error("unexpected Supports")
	}
	localFile := filepath.Join(dir, "file.tif")
	if err := ip.Download(context.Background(), ts.URL+"/redirect/file.tif", localFile); err != nil {
		t.Fatal(err)
	}
	if b, err := os.ReadFile(localFile); err != nil || !bytes.Equal(b, content) {
		t.Errorf("unexpected content (%v)", err)
	}

	err := ip.Download(context.Background(), ts.URL+"/files/other.tif", filepath.Join(dir, "other.tif"))
	if !errors.As(err, &ErrFileNotFound{}) {
		t.Errorf("expecting ErrFileNotFound, found %v", err)
	}
	if err := NewHTTPSProvider("").Download(context.Background(), ts.URL+"/files/file.tif", filepath.Join(dir, "noauth.tif")); err == nil || service.Temporary(err) {
		t.Errorf("expecting a permanent error, found %v", err)
	}
}

func TestParseS3(t *testing.T) {
	bucket, key, err := ParseS3("s3://podaac-ops-cumulus-protected/OPERA_L3_DSWX-HLS_V1/file_B01_WTR.tif")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "podaac-ops-cumulus-protected" || key != "OPERA_L3_DSWX-HLS_V1/file_B01_WTR.tif" {
		t.Errorf("unexpected %s %s", bucket, key)
	}
	for _, link := range []string{"https://host/file", "s3://bucket", "s3://bucket/", "s3:///key"} {
		if _, _, err := ParseS3(link); err == nil {
			t.Errorf("%s: expecting an error", link)
		}
	}
}

func TestS3Provider(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bucket/dir/file.tif" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`))
			return
		}
		http.ServeContent(w, r, "file.tif", time.Time{}, bytes.NewReader(content))
	}))
	defer ts.Close()

	dir := tempDir(t)
	defer os.RemoveAll(dir)

	cfg := aws.Config{
		Region:      "us-west-2",
		Credentials: credentials.NewStaticCredentialsProvider("key", "secret", "session"),
	}
	ip := NewS3Provider(cfg, ts.URL)
	localFile := filepath.Join(dir, "file.tif")
	if err := ip.Download(context.Background(), "s3://bucket/dir/file.tif", localFile); err != nil {
		t.Fatal(err)
	}
	if b, err := os.ReadFile(localFile); err != nil || !bytes.Equal(b, content) {
		t.Errorf("unexpected content (%v)", err)
	}

	err := ip.Download(context.Background(), "s3://bucket/dir/missing.tif", filepath.Join(dir, "missing.tif"))
	if !errors.As(err, &ErrFileNotFound{}) {
		t.Errorf("expecting ErrFileNotFound, found %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "missing.tif")); !os.IsNotExist(err) {
		t.Error("partial file must be removed")
	}
}

type mokeProvider struct {
	prefix string
	err    error
	calls  int
}

func (p *mokeProvider) Name() string              { return "moke:" + p.prefix }
func (p *mokeProvider) Supports(link string) bool { return strings.HasPrefix(link, p.prefix) }
func (p *mokeProvider) Download(ctx context.Context, link, localFile string) error {
	p.calls++
	return p.err
}

func TestDownload(t *testing.T) {
	failing := &mokeProvider{prefix: "https", err: service.MakeTemporary(errors.New("unavailable"))}
	s3 := &mokeProvider{prefix: "s3"}
	https := &mokeProvider{prefix: "https"}
	providers := []FileProvider{failing, s3, https}

	if err := Download(context.Background(), providers, "https://host/file.tif", "file.tif"); err != nil {
		t.Error(err)
	}
	if failing.calls != 1 || s3.calls != 0 || https.calls != 1 {
		t.Errorf("unexpected calls %d %d %d", failing.calls, s3.calls, https.calls)
	}
	if err := Download(context.Background(), providers, "ftp://host/file.tif", "file.tif"); err == nil {
		t.Error("expecting an error")
	}
	if err := Download(context.Background(), []FileProvider{failing}, "https://host/file.tif", "file.tif"); !service.Temporary(err) {
		t.Errorf("expecting a temporary error, found %v", err)
	}
}
