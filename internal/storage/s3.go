package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/OFFIS-RIT/storyweb/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config describes an S3 compatible bucket.
type Config struct {
	Region         string
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
}

func ConfigFromEnv() Config {
	return Config{
		Region:         util.GetEnvString("AWS_REGION", "us-east-1"),
		Endpoint:       util.GetEnv("AWS_ENDPOINT"),
		PublicEndpoint: util.GetEnv("AWS_PUBLIC_ENDPOINT"),
		AccessKey:      util.GetEnv("AWS_ACCESS_KEY"),
		SecretKey:      util.GetEnv("AWS_SECRET_KEY"),
		Bucket:         util.GetEnv("AWS_BUCKET"),
	}
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// Client reads article dumps from and writes graph exports to one bucket.
type Client struct {
	s3     *s3.Client
	cfg    Config
	expiry time.Duration
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("no bucket configured")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &Client{s3: client, cfg: cfg, expiry: 15 * time.Minute}, nil
}

func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// Open streams an object. It satisfies loader.Source.
func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from S3: %w", key, err)
	}
	return out.Body, nil
}

// Put uploads body under key. The content type is derived from the key's
// extension.
func (c *Client) Put(ctx context.Context, key string, body io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if mimeType := mime.TypeByExtension(path.Ext(key)); mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}
	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return nil
}

// List returns all keys below prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.cfg.Bucket),
		Prefix: aws.String(prefix),
	}

	for {
		out, err := c.s3.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return keys, nil
}

// PresignGet returns a short lived download link. When a public endpoint is
// configured the link is signed for that host, so it works from outside the
// cluster network.
func (c *Client) PresignGet(ctx context.Context, key string) (string, error) {
	client := c.s3
	prefix := ""
	if c.cfg.PublicEndpoint != "" {
		publicURL, err := url.Parse(c.cfg.PublicEndpoint)
		if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
			return "", fmt.Errorf("invalid public endpoint: %s", c.cfg.PublicEndpoint)
		}
		prefix = strings.TrimSuffix(publicURL.Path, "/")
		base := fmt.Sprintf("%s://%s", publicURL.Scheme, publicURL.Host)

		client = s3.NewFromConfig(
			aws.Config{
				Region:      c.s3.Options().Region,
				Credentials: c.s3.Options().Credentials,
				HTTPClient:  c.s3.Options().HTTPClient,
			},
			func(o *s3.Options) {
				o.BaseEndpoint = aws.String(base)
				o.UsePathStyle = true
			},
		)
	}

	out, err := s3.NewPresignClient(client).PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(c.cfg.Bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(c.expiry),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}
	if prefix == "" {
		return out.URL, nil
	}

	signed, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signed.Path = prefix + signed.Path
	return signed.String(), nil
}

// SplitURI splits "s3://bucket/key" into bucket and key. ok is false for
// anything that is not an s3 URI.
func SplitURI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
