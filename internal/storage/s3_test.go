package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://dumps/2024/articles.jsonl", "dumps", "2024/articles.jsonl", true},
		{"s3://dumps/", "", "", false},
		{"s3://", "", "", false},
		{"/tmp/articles.jsonl", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := SplitURI(tt.uri)
		assert.Equal(t, tt.ok, ok, tt.uri)
		assert.Equal(t, tt.bucket, bucket, tt.uri)
		assert.Equal(t, tt.key, key, tt.uri)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AWS_BUCKET", "exports")
	t.Setenv("AWS_REGION", "eu-central-1")
	cfg := ConfigFromEnv()
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "eu-central-1", cfg.Region)

	assert.False(t, Config{}.Enabled())
}

func TestNewClient_RequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}

func TestPresignGet_PublicEndpoint(t *testing.T) {
	client, err := NewClient(context.Background(), Config{
		Region:         "us-east-1",
		Endpoint:       "http://minio:9000",
		PublicEndpoint: "https://files.example.org/s3/",
		AccessKey:      "key",
		SecretKey:      "secret",
		Bucket:         "exports",
	})
	require.NoError(t, err)

	link, err := client.PresignGet(context.Background(), "graphs/latest.gexf")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "files.example.org", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/s3/exports/graphs/latest.gexf"), u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
