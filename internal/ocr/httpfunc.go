package ocr

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// NewHTTPFunc: OCR 사이드카 서비스(HTTP)를 호출하는 Func를 만든다.
// 사이드카는 이미지 바이트를 받아 텍스트 박스 배열 JSON을 반환한다.
// 전처리(이진화, 기울기 보정)는 사이드카 내부 사정이다.
func NewHTTPFunc(endpoint string, timeout time.Duration) Func {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context, image []byte) ([]TextBox, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
		if err != nil {
			return nil, fmt.Errorf("build ocr request: %w", err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("ocr sidecar call failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("ocr sidecar returned status %d", resp.StatusCode)
		}

		var payload struct {
			Boxes []TextBox `json:"boxes"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("ocr sidecar decode failed: %w", err)
		}
		return payload.Boxes, nil
	}
}
