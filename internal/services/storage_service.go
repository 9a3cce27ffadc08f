// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/modelmint/modelmint-backend/internal/config"
)

// ObjectStore is the object-storage collaborator: persist bytes under a key
// and fetch remote assets with a bounded timeout.
type ObjectStore interface {
	PutBytes(data []byte, key, contentType string) (string, error)
	FetchBytes(url string) ([]byte, error)
	DeleteObject(key string) error
}

type StorageService struct {
	s3Client   *s3.S3
	httpClient *http.Client
	config     *config.Config
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	svc := &StorageService{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Providers.FetchTimeoutSeconds) * time.Second,
		},
	}

	if config.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return svc, nil
	}

	// Create AWS session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.s3Client = s3.New(sess)
	return svc, nil
}

func (s *StorageService) PutBytes(data []byte, key, contentType string) (string, error) {
	if s.s3Client == nil {
		// Local development: pretend the object landed under the dev server.
		return fmt.Sprintf("http://localhost:%s/uploads/%s", s.config.Server.Port, key), nil
	}

	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}

	if _, err := s.s3Client.PutObject(params); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.getS3URL(key), nil
}

// FetchBytes downloads a provider-hosted asset. The client timeout bounds
// the call; a timeout surfaces as an ordinary processing failure subject to
// the retry policy.
func (s *StorageService) FetchBytes(url string) ([]byte, error) {
	resp, err := s.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset body: %w", err)
	}
	return data, nil
}

func (s *StorageService) DeleteObject(key string) error {
	if s.s3Client == nil {
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func (s *StorageService) getS3URL(key string) string {
	if s.config.AWS.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.config.AWS.CloudFrontURL, key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.AWS.S3Bucket, s.config.AWS.Region, key)
}
