package blobstore

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestNewS3RequiresEndpointAndBucket(t *testing.T) {
	if _, err := NewS3(S3Options{Bucket: "files"}); err == nil {
		t.Fatal("expected error without endpoint")
	}
	if _, err := NewS3(S3Options{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
	client, err := NewS3(S3Options{Endpoint: "localhost:9000", Bucket: "files", AccessKey: "a", SecretKey: "b"})
	if err != nil {
		t.Fatalf("new s3: %v", err)
	}
	if client.bucket != "files" {
		t.Fatalf("expected bucket files, got %q", client.bucket)
	}
}

func TestIsNoSuchKey(t *testing.T) {
	if !isNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}) {
		t.Fatal("expected NoSuchKey to be detected")
	}
	if isNoSuchKey(minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}) {
		t.Fatal("access denied is not a missing key")
	}
	if isNoSuchKey(errors.New("dial tcp: refused")) {
		t.Fatal("network errors are not missing keys")
	}
}

func TestS3TranslateMissing(t *testing.T) {
	s := &S3{bucket: "files"}
	err := s.translate("ab/cd/abcd", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	if !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
