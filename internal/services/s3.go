package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"local-events-aggregator/internal/models"
)

// S3API is the subset of the S3 client used for snapshots
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Client publishes per-region event snapshots for frontend consumption
type S3Client struct {
	client     S3API
	bucketName string
	region     string
}

// EventSnapshot is the JSON document stored per region
type EventSnapshot struct {
	CacheKey    string         `json:"cache_key"`
	Region      models.Region  `json:"region"`
	GeneratedAt time.Time      `json:"generated_at"`
	TotalEvents int            `json:"total_events"`
	Events      []models.Event `json:"events"`
}

// S3UploadResult represents the result of an S3 upload operation
type S3UploadResult struct {
	Key        string    `json:"key"`
	ETag       string    `json:"etag"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	PublicURL  string    `json:"public_url"`
}

// NewS3Client creates a snapshot client over an S3 API
func NewS3Client(client S3API, bucketName, region string) *S3Client {
	return &S3Client{client: client, bucketName: bucketName, region: region}
}

// NewS3ClientFromConfig creates a snapshot client from AWS configuration
func NewS3ClientFromConfig(cfg aws.Config, bucketName string) *S3Client {
	return NewS3Client(s3.NewFromConfig(cfg), bucketName, cfg.Region)
}

// SnapshotKey returns the object key of a region's latest snapshot
func SnapshotKey(r models.Region) string {
	return fmt.Sprintf("events/%s/latest.json", r.CacheKey())
}

// PublishSnapshot uploads the live events of a region as its latest snapshot
func (s *S3Client) PublishSnapshot(ctx context.Context, r models.Region, events []models.Event) (*S3UploadResult, error) {
	snapshot := EventSnapshot{
		CacheKey:    r.CacheKey(),
		Region:      r,
		GeneratedAt: time.Now().UTC(),
		TotalEvents: len(events),
		Events:      events,
	}
	if snapshot.Events == nil {
		snapshot.Events = []models.Event{}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.uploadJSON(ctx, data, SnapshotKey(r))
}

// LoadSnapshot downloads a region's latest snapshot
func (s *S3Client) LoadSnapshot(ctx context.Context, r models.Region) (*EventSnapshot, error) {
	data, err := s.downloadJSON(ctx, SnapshotKey(r))
	if err != nil {
		return nil, err
	}

	var snapshot EventSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// GetPublicURL generates the public URL for an S3 object
func (s *S3Client) GetPublicURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketName, s.region, key)
}

func (s *S3Client) uploadJSON(ctx context.Context, data []byte, key string) (*S3UploadResult, error) {
	key = strings.TrimPrefix(key, "/")

	result, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucketName),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("public, max-age=300"),
		Metadata: map[string]string{
			"uploaded-by": "local-events-aggregator",
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	etag := ""
	if result.ETag != nil {
		etag = strings.Trim(*result.ETag, `"`)
	}
	return &S3UploadResult{
		Key:        key,
		ETag:       etag,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		PublicURL:  s.GetPublicURL(key),
	}, nil
}

func (s *S3Client) downloadJSON(ctx context.Context, key string) ([]byte, error) {
	key = strings.TrimPrefix(key, "/")

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	return data, nil
}
