package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/chrscato/cdx-billreview/internal/common"
	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/service"
)

// S3ClaimStore implements service.ClaimStore over an S3 bucket of claim
// JSON documents.
type S3ClaimStore struct {
	client *s3.Client
	bucket string
	retry  service.RetryOptions
}

// NewS3ClaimStore creates a claim store for the given bucket.
func NewS3ClaimStore(ctx context.Context, bucket, region string) (*S3ClaimStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: bucket", common.ErrMissingConfig)
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3ClaimStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// List returns the JSON object keys under prefix, excluding "directory"
// markers.
func (c *S3ClaimStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w: %v", prefix, common.ErrStoreUnavailable, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || key[len(key)-1] == '/' {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Get fetches and decodes one claim document.
func (c *S3ClaimStore) Get(ctx context.Context, key string) (*model.Claim, error) {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, key)
		}
		return nil, fmt.Errorf("getting %s: %w", key, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	var claim model.Claim
	if err := json.Unmarshal(data, &claim); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrClaimMalformed, key, err)
	}
	return &claim, nil
}

// Put writes one claim document.
func (c *S3ClaimStore) Put(ctx context.Context, key string, claim *model.Claim) error {
	data, err := json.MarshalIndent(claim, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling claim for %s: %w", key, err)
	}

	return common.WithRetry(ctx, func() error {
		_, putErr := c.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(c.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if putErr != nil {
			return &common.RetryableError{Err: putErr, Retryable: true}
		}
		return nil
	}, c.retry)
}

// Delete removes one claim document.
func (c *S3ClaimStore) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Move relocates a claim by writing the destination first and deleting
// the source only after the write succeeds. A failed destination write
// leaves the source untouched.
func (c *S3ClaimStore) Move(ctx context.Context, srcKey, dstKey string, claim *model.Claim) error {
	if err := c.Put(ctx, dstKey, claim); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMoveNotConfirmed, err)
	}
	return c.Delete(ctx, srcKey)
}
