// internal/storage/client.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
)

// api is the slice of the S3 client the storage layer touches.
type api interface {
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// uploader matches the manager.Uploader surface used here.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Client moves flat files in and out of a single bucket by key.
type Client struct {
	api      api
	uploader uploader
	bucket   string
	region   string
}

func NewClient(svc *s3.Client, bucket, region string) *Client {
	return &Client{
		api:      svc,
		uploader: manager.NewUploader(svc),
		bucket:   bucket,
		region:   region,
	}
}

func newWithAPI(a api, up uploader, bucket, region string) *Client {
	return &Client{api: a, uploader: up, bucket: bucket, region: region}
}

// Bucket returns the bucket this client operates on.
func (c *Client) Bucket() string { return c.bucket }

// URI renders a key as the s3:// URI the provider consumes.
func (c *Client) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", c.bucket, key)
}

// EnsureBucket creates the bucket, treating "already owned" as success.
func (c *Client) EnsureBucket(ctx context.Context) error {
	in := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	if c.region != "" && c.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}

	_, err := c.api.CreateBucket(ctx, in)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// UploadFile streams a local file to the given key.
func (c *Client) UploadFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// UploadFiles uploads key→path pairs concurrently.
func (c *Client) UploadFiles(ctx context.Context, files map[string]string) error {
	g, ctx := errgroup.WithContext(ctx)
	for key, path := range files {
		key, path := key, path
		g.Go(func() error {
			return c.UploadFile(ctx, key, path)
		})
	}
	return g.Wait()
}

// Download fetches an object from an arbitrary bucket into a local file.
func (c *Client) Download(ctx context.Context, bucket, key, dest string) error {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", dest, err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// ListKeys returns object keys under a prefix in an arbitrary bucket.
func (c *Client) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if out.NextContinuationToken == nil {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

// DeletePrefix removes every object under a prefix in the client's bucket,
// including provider-written outputs whose exact keys are not known up
// front.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := c.ListKeys(ctx, c.bucket, prefix)
	if err != nil {
		return err
	}
	return c.DeleteKeys(ctx, keys)
}

// DeleteKeys removes objects from the client's bucket. It keeps going on
// individual failures and reports them joined.
func (c *Client) DeleteKeys(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
