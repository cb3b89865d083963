// utils/r2.go
package utils

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"market-cards-scoring/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectInfo is the subset of an object listing the card sync needs.
type ObjectInfo struct {
	Key          string
	ETag         string
	LastModified time.Time
}

// R2Client reads card-deck files from a Cloudflare R2 (S3 compatible) bucket.
type R2Client struct {
	client *s3.Client
	bucket string
}

// NewR2Client builds a client from config. The endpoint defaults to the
// account's r2.cloudflarestorage.com host.
func NewR2Client(ctx context.Context, cfg config.R2Config) (*R2Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &R2Client{client: client, bucket: cfg.Bucket}, nil
}

// Bucket is the bucket this client reads from.
func (r *R2Client) Bucket() string {
	return r.bucket
}

// List returns every object under prefix.
func (r *R2Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	p := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list R2 objects: %w", err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{
				Key:  aws.ToString(obj.Key),
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	return out, nil
}

// Get downloads a whole object. Deck files are small CSVs.
func (r *R2Client) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from R2: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(body) > MaxImportBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", key, MaxImportBytes)
	}
	return body, nil
}
