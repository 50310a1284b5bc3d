package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const s3PartSize = 10 * 1024 * 1024 // 10MB per part

// S3Provider implements FileProvider for s3 links (direct access, with the temporary credentials of a DAAC)
type S3Provider struct {
	client *s3.Client
}

// NewS3Provider creates a new FileProvider for s3 links.
// endpoint is optional (default: aws endpoint of the region of the config).
func NewS3Provider(cfg aws.Config, endpoint string) *S3Provider {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Provider{client: client}
}

// Name implements FileProvider
func (ip *S3Provider) Name() string {
	return "S3"
}

// Supports implements FileProvider
func (ip *S3Provider) Supports(link string) bool {
	return strings.HasPrefix(strings.ToLower(link), "s3://")
}

// ParseS3 returns the bucket and the key of an s3 link
func ParseS3(link string) (string, string, error) {
	path := link
	if !strings.HasPrefix(strings.ToLower(path), "s3://") {
		return "", "", fmt.Errorf("ParseS3: not an s3 link: %s", link)
	}
	path = path[len("s3://"):]
	i := strings.Index(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("ParseS3: invalid s3 link: %s", link)
	}
	return path[:i], path[i+1:], nil
}

// Download implements FileProvider
func (ip *S3Provider) Download(ctx context.Context, link, localFile string) error {
	bucket, key, err := ParseS3(link)
	if err != nil {
		return fmt.Errorf("S3Provider.%w", err)
	}
	downloader := manager.NewDownloader(ip.client, func(d *manager.Downloader) {
		d.PartSize = s3PartSize
	})
	if err := downloadSingleObjectToFile(ctx, downloader, bucket, key, localFile); err != nil {
		os.Remove(localFile)
		return fmt.Errorf("S3Provider.%w", err)
	}
	return nil
}

func downloadSingleObjectToFile(ctx context.Context, downloader *manager.Downloader, bucketName string, objectKey string, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadSingleObjectToFile: failed to create file %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var apiErr smithy.APIError
		switch {
		case errors.As(err, &nsk):
			return ErrFileNotFound{"s3://" + bucketName + "/" + objectKey}
		case errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "AccessDenied"):
			return fmt.Errorf("downloadSingleObjectToFile: %s:%s: %w", bucketName, objectKey, err)
		}
		return service.MakeTemporary(fmt.Errorf("downloadSingleObjectToFile: failed to download object %s:%s: %w",
			bucketName, objectKey, err))
	}
	return nil
}
