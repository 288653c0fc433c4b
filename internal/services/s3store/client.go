package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"bleep/internal/services"
)

// api is the subset of the S3 client the store uses.
type api interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client implements object storage over S3.
type Client struct {
	api api
}

// New wraps an S3 client.
func New(client *s3.Client) *Client {
	return &Client{api: client}
}

func newWithAPI(client api) *Client {
	return &Client{api: client}
}

// List returns every object key under the prefix, following pagination.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	var continuation *string
	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: continuation,
		}
		if prefix != "" {
			input.Prefix = aws.String(prefix)
		}
		output, err := c.api.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, services.Wrap(services.ClassifyAWS(err), "store", "list", fmt.Sprintf("bucket %s", bucket), err)
		}
		for _, object := range output.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}
		if !aws.ToBool(output.IsTruncated) {
			return keys, nil
		}
		continuation = output.NextContinuationToken
	}
}

// Exists reports whether the object is present.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		marker := services.ClassifyAWS(err)
		if errors.Is(marker, services.ErrNotFound) {
			return false, nil
		}
		return false, services.Wrap(marker, "store", "head", fmt.Sprintf("%s/%s", bucket, key), err)
	}
	return true, nil
}

// Get reads the full object body.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	output, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, services.Wrap(services.ClassifyAWS(err), "store", "get", fmt.Sprintf("%s/%s", bucket, key), err)
	}
	defer output.Body.Close()

	body, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get", fmt.Sprintf("read %s/%s", bucket, key), err)
	}
	return body, nil
}

// Put writes the object. Everything the pipeline writes is JSON.
func (c *Client) Put(ctx context.Context, bucket, key string, body []byte) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return services.Wrap(services.ClassifyAWS(err), "store", "put", fmt.Sprintf("%s/%s", bucket, key), err)
	}
	return nil
}
