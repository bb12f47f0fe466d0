package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"tasnim.dev/lbgraph/internal/constants"
)

var (
	ErrInvalidURI     = errors.New("invalid s3 uri")
	ErrObjectTooLarge = errors.New("object too large")
)

type S3API interface {
	GetBucketLocation(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

type Client struct {
	api S3API
	log *zap.Logger
	now func() time.Time
}

func NewClient(api S3API, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{api: api, log: log, now: time.Now}
}

// ParseURI splits s3://bucket/key. The key may be empty, in which case it
// names the bucket root.
func ParseURI(uri string) (Location, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return Location{}, fmt.Errorf("%w %q: missing s3:// scheme", ErrInvalidURI, uri)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("%w %q: missing bucket", ErrInvalidURI, uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// Join returns a location for name under l, treating l.Key as a prefix.
func (l Location) Join(name string) Location {
	return Location{Bucket: l.Bucket, Key: strings.TrimPrefix(path.Join(l.Key, name), "/")}
}

// BucketRegion resolves the region a bucket lives in.
func (c *Client) BucketRegion(ctx context.Context, bucket string) (string, error) {
	out, err := c.api.GetBucketLocation(ctx, &awss3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", fmt.Errorf("GetBucketLocation(%s): %w", bucket, err)
	}
	region := string(out.LocationConstraint)
	if region == "" {
		region = "us-east-1"
	}
	return region, nil
}

// Publish writes every object under prefix. Uploads run concurrently, bounded
// to 10 goroutines, and the first failure is returned.
func (c *Client) Publish(ctx context.Context, prefix Location, objects []Object) ([]Published, error) {
	if len(objects) == 0 {
		return nil, nil
	}
	region, err := c.BucketRegion(ctx, prefix.Bucket)
	if err != nil {
		return nil, err
	}
	inRegion := func(o *awss3.Options) {
		o.Region = region
	}

	published := make([]Published, len(objects))

	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, obj := range objects {
		loc := prefix
		if obj.Key != "" {
			loc = prefix.Join(obj.Key)
		}

		wg.Add(1)
		go func(idx int, loc Location, obj Object) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			input := &awss3.PutObjectInput{
				Bucket: aws.String(loc.Bucket),
				Key:    aws.String(loc.Key),
				Body:   bytes.NewReader(obj.Body),
			}
			if obj.ContentType != "" {
				input.ContentType = aws.String(obj.ContentType)
			}

			out, err := c.api.PutObject(ctx, input, inRegion)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("PutObject(%s): %w", loc, err)
				}
				mu.Unlock()
				return
			}

			mu.Lock()
			published[idx] = Published{
				Location: loc,
				ETag:     strings.Trim(aws.ToString(out.ETag), `"`),
				Version:  aws.ToString(out.VersionId),
				Size:     len(obj.Body),
				At:       c.now(),
			}
			mu.Unlock()
		}(i, loc, obj)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	c.log.Info("published objects",
		zap.String("bucket", prefix.Bucket),
		zap.String("region", region),
		zap.Strings("keys", lo.Map(published, func(p Published, _ int) string { return p.Location.Key })),
	)
	return published, nil
}

// Fetch downloads a single object of at most constants.MaxDefinitionSize
// bytes.
func (c *Client) Fetch(ctx context.Context, loc Location) ([]byte, error) {
	if loc.Key == "" {
		return nil, fmt.Errorf("%w %q: missing key", ErrInvalidURI, loc)
	}
	region, err := c.BucketRegion(ctx, loc.Bucket)
	if err != nil {
		return nil, err
	}

	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}, func(o *awss3.Options) {
		o.Region = region
	})
	if err != nil {
		return nil, fmt.Errorf("GetObject(%s): %w", loc, err)
	}
	defer out.Body.Close()

	if size := aws.ToInt64(out.ContentLength); size > constants.MaxDefinitionSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, max %d", ErrObjectTooLarge, loc, size, constants.MaxDefinitionSize)
	}
	data, err := io.ReadAll(io.LimitReader(out.Body, constants.MaxDefinitionSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", loc, err)
	}
	if len(data) > constants.MaxDefinitionSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrObjectTooLarge, loc, constants.MaxDefinitionSize)
	}
	return data, nil
}
