// Package storage issues presigned object-storage URLs for property
// document uploads. Clients upload directly to the bucket; the server
// never relays file bytes.
package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	uploadExpiry = 15 * time.Minute
	readExpiry   = 7 * 24 * time.Hour
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Config holds object storage connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Configured returns true when enough settings are present to build a client.
func (c Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type presignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Service presigns upload and read URLs for document objects.
type Service struct {
	presigner presignAPI
	bucket    string
	now       func() time.Time
}

// DocumentURLs is the pair of presigned URLs handed to a client for one
// document, plus the object key the upload will land at.
type DocumentURLs struct {
	UploadURL string `json:"uploadUrl"`
	ReadURL   string `json:"readUrl"`
	ObjectKey string `json:"objectKey"`
}

// New builds a Service from config. Returns an error if required
// settings are missing.
func New(cfg Config) (*Service, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("storage is not configured")
	}
	client := newS3Client(cfg)
	return &Service{
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		now:       time.Now,
	}, nil
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// PresignDocument generates a short-lived upload URL and a longer-lived
// read URL for a property document. The object key embeds the property,
// document type and a timestamp so repeated uploads never collide.
func (s *Service) PresignDocument(ctx context.Context, fileName, fileType, propertyID, documentType string) (*DocumentURLs, error) {
	key := s.objectKey(propertyID, documentType, fileName)

	put, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(fileType),
	}, s3.WithPresignExpires(uploadExpiry))
	if err != nil {
		return nil, fmt.Errorf("presigning upload url: %w", err)
	}

	get, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(readExpiry))
	if err != nil {
		return nil, fmt.Errorf("presigning read url: %w", err)
	}

	return &DocumentURLs{
		UploadURL: put.URL,
		ReadURL:   get.URL,
		ObjectKey: key,
	}, nil
}

// objectKey sanitizes the client-supplied file name and scopes the key
// under the property and document type.
func (s *Service) objectKey(propertyID, documentType, fileName string) string {
	clean := unsafeChars.ReplaceAllString(path.Base(fileName), "-")
	return fmt.Sprintf("property-documents/%s/%s/%d-%s", propertyID, documentType, s.now().UnixMilli(), clean)
}
