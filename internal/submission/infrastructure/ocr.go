package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/slpk/loandocs/internal/submission/domain"
)

// OCRClient calls the text extraction collaborator over HTTP.
type OCRClient struct {
	client *resty.Client
}

// NewOCRClient builds the client for the given base URL.
func NewOCRClient(baseURL string, timeout time.Duration) *OCRClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1)
	return &OCRClient{client: c}
}

// Extract sends the image and returns the extracted text. Any transport or
// server failure is returned as an error; callers treat those as "skip the
// check", never as a verdict on the document.
func (c *OCRClient) Extract(ctx context.Context, fileName string, data []byte) (*domain.OCRResult, error) {
	var result domain.OCRResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("image", fileName, bytes.NewReader(data)).
		SetResult(&result).
		Post("/ocr")
	if err != nil {
		return nil, fmt.Errorf("ocr request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ocr request failed with status %d", resp.StatusCode())
	}
	return &result, nil
}
