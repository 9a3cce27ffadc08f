// internal/services/watermark_service.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/modelmint/modelmint-backend/internal/config"
)

// Watermarker is the content-safety watermarking collaborator.
type Watermarker interface {
	Apply(imageURL, contentID string) (string, error)
	Remove(imageURL, contentID string) (string, error)
}

type WatermarkService struct {
	baseURL    string
	httpClient *http.Client
}

func NewWatermarkService(config *config.Config) *WatermarkService {
	return &WatermarkService{
		baseURL: config.Watermark.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Watermark.TimeoutSeconds) * time.Second,
		},
	}
}

type watermarkRequest struct {
	ImageURL  string `json:"image_url"`
	ContentID string `json:"content_id"`
}

type watermarkResponse struct {
	URL string `json:"url"`
}

// Apply returns the watermarked copy's URL. With no service configured the
// original URL passes through, mirroring local development without S3.
func (s *WatermarkService) Apply(imageURL, contentID string) (string, error) {
	if s.baseURL == "" {
		return imageURL, nil
	}
	return s.post("/apply", imageURL, contentID)
}

func (s *WatermarkService) Remove(imageURL, contentID string) (string, error) {
	if s.baseURL == "" {
		return imageURL, nil
	}
	return s.post("/remove", imageURL, contentID)
}

func (s *WatermarkService) post(path, imageURL, contentID string) (string, error) {
	body, err := json.Marshal(watermarkRequest{
		ImageURL:  imageURL,
		ContentID: contentID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode watermark request: %w", err)
	}

	resp, err := s.httpClient.Post(s.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("watermark service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watermark service returned status %d", resp.StatusCode)
	}

	var decoded watermarkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode watermark response: %w", err)
	}
	return decoded.URL, nil
}
