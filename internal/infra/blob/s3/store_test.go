package s3

import (
	"context"
	"testing"

	"dispatchbook/internal/blob/core"
)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	store, err := New(context.Background(), Config{
		Bucket:          "dispatchbook-artifacts",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
		PathStyle:       true,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}

func TestOpenFromEnvRequiresBucket(t *testing.T) {
	t.Setenv("DISPATCHBOOK_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected error without bucket env")
	}
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv("DISPATCHBOOK_BLOB_S3_BUCKET", "dispatchbook-artifacts")
	t.Setenv("DISPATCHBOOK_BLOB_S3_REGION", "eu-west-1")
	t.Setenv("DISPATCHBOOK_BLOB_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("DISPATCHBOOK_BLOB_S3_PATH_STYLE", "true")

	store, err := OpenFromEnv(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.bucket != "dispatchbook-artifacts" {
		t.Fatalf("unexpected bucket %q", store.bucket)
	}
}
