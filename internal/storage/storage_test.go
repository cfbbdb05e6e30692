package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePresigner struct {
	putInput *s3.PutObjectInput
	getInput *s3.GetObjectInput
	err      error
}

func (f *fakePresigner) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.putInput = params
	return &v4.PresignedHTTPRequest{URL: "https://storage.test/put/" + *params.Key}, nil
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.getInput = params
	return &v4.PresignedHTTPRequest{URL: "https://storage.test/get/" + *params.Key}, nil
}

func testService(fake *fakePresigner) *Service {
	return &Service{
		presigner: fake,
		bucket:    "test-bucket",
		now:       func() time.Time { return time.UnixMilli(1700000000000) },
	}
}

func TestPresignDocument(t *testing.T) {
	fake := &fakePresigner{}
	svc := testService(fake)

	urls, err := svc.PresignDocument(context.Background(), "deed scan.pdf", "application/pdf", "P1", "deed")
	if err != nil {
		t.Fatalf("PresignDocument: %v", err)
	}

	wantKey := "property-documents/P1/deed/1700000000000-deed-scan.pdf"
	if urls.ObjectKey != wantKey {
		t.Errorf("object key = %q, want %q", urls.ObjectKey, wantKey)
	}
	if urls.UploadURL != "https://storage.test/put/"+wantKey {
		t.Errorf("upload url = %q", urls.UploadURL)
	}
	if urls.ReadURL != "https://storage.test/get/"+wantKey {
		t.Errorf("read url = %q", urls.ReadURL)
	}
	if *fake.putInput.Bucket != "test-bucket" {
		t.Errorf("bucket = %q, want test-bucket", *fake.putInput.Bucket)
	}
	if *fake.putInput.ContentType != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", *fake.putInput.ContentType)
	}
	if *fake.getInput.Key != wantKey {
		t.Errorf("read key = %q, want %q", *fake.getInput.Key, wantKey)
	}
}

func TestObjectKeySanitization(t *testing.T) {
	svc := testService(&fakePresigner{})

	tests := []struct {
		fileName string
		want     string
	}{
		{"simple.pdf", "property-documents/P1/deed/1700000000000-simple.pdf"},
		{"has spaces.pdf", "property-documents/P1/deed/1700000000000-has-spaces.pdf"},
		{"../../etc/passwd", "property-documents/P1/deed/1700000000000-passwd"},
		{"weird!@#$chars.png", "property-documents/P1/deed/1700000000000-weird----chars.png"},
	}
	for _, tt := range tests {
		got := svc.objectKey("P1", "deed", tt.fileName)
		if got != tt.want {
			t.Errorf("objectKey(%q) = %q, want %q", tt.fileName, got, tt.want)
		}
	}
}

func TestPresignDocumentError(t *testing.T) {
	fake := &fakePresigner{err: fmt.Errorf("boom")}
	svc := testService(fake)

	if _, err := svc.PresignDocument(context.Background(), "a.pdf", "application/pdf", "P1", "deed"); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigured(t *testing.T) {
	if (Config{}).Configured() {
		t.Error("empty config should not be configured")
	}
	cfg := Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}
	if !cfg.Configured() {
		t.Error("complete config should be configured")
	}
}
