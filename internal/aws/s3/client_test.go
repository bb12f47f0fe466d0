package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"tasnim.dev/lbgraph/internal/constants"
)

type mockS3API struct {
	getBucketLocationFunc func(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error)
	putObjectFunc         func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	getObjectFunc         func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

func (m *mockS3API) GetBucketLocation(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error) {
	if m.getBucketLocationFunc == nil {
		return &awss3.GetBucketLocationOutput{}, nil
	}
	return m.getBucketLocationFunc(ctx, params, optFns...)
}

func (m *mockS3API) PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	return m.putObjectFunc(ctx, params, optFns...)
}

func (m *mockS3API) GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	return m.getObjectFunc(ctx, params, optFns...)
}

func applyRegion(optFns []func(*awss3.Options)) string {
	var o awss3.Options
	for _, fn := range optFns {
		fn(&o)
	}
	return o.Region
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    Location
		wantErr bool
	}{
		{uri: "s3://bucket/stacks/web.yaml", want: Location{Bucket: "bucket", Key: "stacks/web.yaml"}},
		{uri: "s3://bucket/", want: Location{Bucket: "bucket"}},
		{uri: "s3://bucket", want: Location{Bucket: "bucket"}},
		{uri: "https://bucket/key", wantErr: true},
		{uri: "s3:///key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURI) {
					t.Fatalf("err = %v, want ErrInvalidURI", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseURI = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLocationJoin(t *testing.T) {
	if got := (Location{Bucket: "b"}).Join("template.yaml").Key; got != "template.yaml" {
		t.Errorf("Join at root = %q", got)
	}
	if got := (Location{Bucket: "b", Key: "stacks/prod/"}).Join("web.yaml").Key; got != "stacks/prod/web.yaml" {
		t.Errorf("Join under prefix = %q", got)
	}
}

func TestBucketRegion(t *testing.T) {
	mock := &mockS3API{
		getBucketLocationFunc: func(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error) {
			switch awssdk.ToString(params.Bucket) {
			case "eu":
				return &awss3.GetBucketLocationOutput{
					LocationConstraint: s3types.BucketLocationConstraintEuWest1,
				}, nil
			default:
				// Empty string means us-east-1
				return &awss3.GetBucketLocationOutput{}, nil
			}
		},
	}

	client := NewClient(mock, nil)
	for bucket, want := range map[string]string{"eu": "eu-west-1", "legacy": "us-east-1"} {
		got, err := client.BucketRegion(context.Background(), bucket)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("BucketRegion(%s) = %s, want %s", bucket, got, want)
		}
	}
}

func TestPublish(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string]string{}

	mock := &mockS3API{
		getBucketLocationFunc: func(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error) {
			return &awss3.GetBucketLocationOutput{LocationConstraint: s3types.BucketLocationConstraintApSouth1}, nil
		},
		putObjectFunc: func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			if r := applyRegion(optFns); r != "ap-south-1" {
				t.Errorf("region = %s, want ap-south-1", r)
			}
			data, _ := io.ReadAll(params.Body)
			mu.Lock()
			bodies[awssdk.ToString(params.Key)] = string(data)
			mu.Unlock()
			return &awss3.PutObjectOutput{ETag: awssdk.String(`"abc123"`)}, nil
		},
	}

	client := NewClient(mock, nil)
	out, err := client.Publish(context.Background(), Location{Bucket: "artifacts", Key: "stacks/prod"}, []Object{
		{Key: "template.yaml", Body: []byte("scopes: []"), ContentType: "application/yaml"},
		{Key: "web.yaml", Body: []byte("web")},
		{Key: "app.yaml", Body: []byte("app")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 published objects, got %d", len(out))
	}
	if out[0].Location.Key != "stacks/prod/template.yaml" {
		t.Errorf("out[0].Key = %s", out[0].Location.Key)
	}
	if out[0].ETag != "abc123" {
		t.Errorf("ETag = %s, want abc123", out[0].ETag)
	}
	if out[0].Size != len("scopes: []") {
		t.Errorf("Size = %d", out[0].Size)
	}

	keys := make([]string, 0, len(bodies))
	for k := range bodies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{"stacks/prod/app.yaml", "stacks/prod/template.yaml", "stacks/prod/web.yaml"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if bodies["stacks/prod/web.yaml"] != "web" {
		t.Errorf("web body = %q", bodies["stacks/prod/web.yaml"])
	}
}

func TestPublish_SingleObjectAtExactKey(t *testing.T) {
	var got string
	mock := &mockS3API{
		putObjectFunc: func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			got = awssdk.ToString(params.Key)
			return &awss3.PutObjectOutput{}, nil
		},
	}

	client := NewClient(mock, nil)
	if _, err := client.Publish(context.Background(), Location{Bucket: "b", Key: "web.json"}, []Object{{Body: []byte("{}")}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "web.json" {
		t.Errorf("key = %s, want web.json", got)
	}
}

func TestPublish_PutError(t *testing.T) {
	mock := &mockS3API{
		putObjectFunc: func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			if awssdk.ToString(params.Key) == "bad.yaml" {
				return nil, fmt.Errorf("access denied")
			}
			return &awss3.PutObjectOutput{}, nil
		},
	}

	client := NewClient(mock, nil)
	_, err := client.Publish(context.Background(), Location{Bucket: "b"}, []Object{
		{Key: "good.yaml"},
		{Key: "bad.yaml"},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "PutObject(s3://b/bad.yaml)") {
		t.Errorf("error should name the failing object, got: %v", err)
	}
}

func TestPublish_LocationError(t *testing.T) {
	mock := &mockS3API{
		getBucketLocationFunc: func(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error) {
			return nil, fmt.Errorf("forbidden")
		},
	}

	client := NewClient(mock, nil)
	_, err := client.Publish(context.Background(), Location{Bucket: "fail-bucket"}, []Object{{Key: "x"}})
	if err == nil {
		t.Fatal("expected error from GetBucketLocation failure")
	}
	if !strings.Contains(err.Error(), "GetBucketLocation") {
		t.Errorf("error should contain GetBucketLocation context, got: %v", err)
	}
	if !strings.Contains(err.Error(), "fail-bucket") {
		t.Errorf("error should contain bucket name, got: %v", err)
	}
}

func TestPublish_Empty(t *testing.T) {
	client := NewClient(&mockS3API{}, nil)
	out, err := client.Publish(context.Background(), Location{Bucket: "b"}, nil)
	if err != nil || out != nil {
		t.Errorf("Publish(nil) = %v, %v", out, err)
	}
}

func TestFetch(t *testing.T) {
	mock := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			if awssdk.ToString(params.Bucket) != "my-bucket" {
				t.Errorf("Bucket = %s, want my-bucket", awssdk.ToString(params.Bucket))
			}
			if awssdk.ToString(params.Key) != "stack.yaml" {
				t.Errorf("Key = %s, want stack.yaml", awssdk.ToString(params.Key))
			}
			if r := applyRegion(optFns); r != "us-east-1" {
				t.Errorf("region = %s, want us-east-1", r)
			}
			return &awss3.GetObjectOutput{
				Body: io.NopCloser(strings.NewReader("scopes: []")),
			}, nil
		},
	}

	client := NewClient(mock, nil)
	data, err := client.Fetch(context.Background(), Location{Bucket: "my-bucket", Key: "stack.yaml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "scopes: []" {
		t.Errorf("data = %q, want %q", string(data), "scopes: []")
	}
}

func TestFetch_Error(t *testing.T) {
	mock := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			return nil, fmt.Errorf("access denied")
		},
	}

	client := NewClient(mock, nil)
	_, err := client.Fetch(context.Background(), Location{Bucket: "my-bucket", Key: "secret.yaml"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "GetObject") {
		t.Errorf("error should wrap with GetObject context, got: %v", err)
	}
}

func TestFetch_MissingKey(t *testing.T) {
	client := NewClient(&mockS3API{}, nil)
	_, err := client.Fetch(context.Background(), Location{Bucket: "b"})
	if !errors.Is(err, ErrInvalidURI) {
		t.Errorf("err = %v, want ErrInvalidURI", err)
	}
}

func TestFetch_SizeLimit(t *testing.T) {
	mock := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			return &awss3.GetObjectOutput{
				Body:          io.NopCloser(strings.NewReader("")),
				ContentLength: awssdk.Int64(constants.MaxDefinitionSize + 1),
			}, nil
		},
	}

	client := NewClient(mock, nil)
	_, err := client.Fetch(context.Background(), Location{Bucket: "b", Key: "big.yaml"})
	if !errors.Is(err, ErrObjectTooLarge) {
		t.Errorf("err = %v, want ErrObjectTooLarge", err)
	}
}
