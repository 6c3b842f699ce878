package vision

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/services"
	"github.com/desertthunder/discx/internal/shared"
)

// OCR extracts text lines from a photo.
type OCR interface {
	ExtractText(ctx context.Context, image []byte) ([]string, error)
}

// ProxyOCR calls an HTTP OCR service: POST {base}/ocr with the raw image,
// answered by {"lines": ["..."]}.
type ProxyOCR struct {
	api *services.APIService
}

// NewProxyOCR creates an OCR client for baseURL.
func NewProxyOCR(baseURL string, client *http.Client, logger *log.Logger) *ProxyOCR {
	return &ProxyOCR{api: services.NewAPIService(baseURL, client, shared.WithLogger(logger, "component", "ocr"))}
}

type ocrResponse struct {
	Lines []string `json:"lines"`
}

// ExtractText returns the lines recognized in image, in reading order.
func (o *ProxyOCR) ExtractText(ctx context.Context, image []byte) ([]string, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", shared.ErrInvalidArgument)
	}

	resp, err := o.api.Do(ctx, services.Request{
		Method:      http.MethodPost,
		Path:        "/ocr",
		Body:        image,
		ContentType: http.DetectContentType(image),
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.Err()
	}

	var out ocrResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Lines, nil
}
