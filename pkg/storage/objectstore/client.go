package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
)

// Client talks to a Backblaze B2 bucket over the S3-compatible API. Video
// assets live here; they are private and only reachable through presigned
// GET URLs.
type Client struct {
	s3Client *s3.Client
	presign  *s3.PresignClient
	bucket   string
	maxTTL   time.Duration
	timeout  time.Duration
}

func NewClient(ctx context.Context, cfg config.ObjectStoreConfig, logg *logger.Logger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.ApplicationKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading object store config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	maxTTL := cfg.MaxSignTTL
	if maxTTL <= 0 || maxTTL > config.SignTTLCap {
		maxTTL = config.SignTTLCap
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := &Client{
		s3Client: s3Client,
		presign:  s3.NewPresignClient(s3Client),
		bucket:   cfg.Bucket,
		maxTTL:   maxTTL,
		timeout:  timeout,
	}

	if logg != nil {
		logg.Info(ctx, "object store client initialized")
	}

	return client, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Put streams one object into the bucket under key.
func (c *Client) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if c == nil {
		return errors.New("object store client not initialized")
	}
	if key == "" {
		return errors.New("object key is required")
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}
	return nil
}

// SignGetURL issues a presigned GET URL for key. The requested TTL is
// clamped to the configured maximum; zero or negative requests get the
// maximum. Returns the URL and its expiry instant.
func (c *Client) SignGetURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if c == nil {
		return "", time.Time{}, errors.New("object store client not initialized")
	}
	if key == "" {
		return "", time.Time{}, errors.New("object key is required")
	}

	if ttl <= 0 || ttl > c.maxTTL {
		ttl = c.maxTTL
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing url for %q: %w", key, err)
	}

	return req.URL, time.Now().Add(ttl), nil
}

// Delete removes one object. Missing keys are treated as success so retries
// and double deletes stay quiet.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c == nil {
		return errors.New("object store client not initialized")
	}
	if key == "" {
		return errors.New("object key is required")
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("deleting object %q: %w", key, err)
	}
	return nil
}

// opContext bounds one network operation. Presigning needs no bound; it is
// computed locally.
func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || strings.EqualFold(code, "404")
	}
	return false
}
