package tts

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPProvider streams synthesis chunks over a single long-lived HTTP
// response body, for providers that expose a streaming REST endpoint
// rather than a websocket (raw mono 16-bit PCM on the wire, no container).
type HTTPProvider struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	voiceID string
}

// NewHTTPProvider builds a provider posting to baseURL+"/v1/synthesize".
func NewHTTPProvider(baseURL, apiKey, voiceID string) *HTTPProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetDoNotParseResponse(true)
	return &HTTPProvider{client: client, baseURL: baseURL, apiKey: apiKey, voiceID: voiceID}
}

// Synthesize implements Fetcher.
func (h *HTTPProvider) Synthesize(ctx context.Context, text string, excitement int, timeout time.Duration, onChunk func([]byte) error) error {
	return runWithDeadline(ctx, timeout, func(fetchCtx context.Context, onChunk func([]byte) error) error {
		return h.stream(fetchCtx, text, excitement, onChunk)
	}, onChunk)
}

func (h *HTTPProvider) stream(ctx context.Context, text string, excitement int, onChunk func([]byte) error) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"text":       text,
			"voice_id":   h.voiceID,
			"excitement": excitement,
			"format":     "pcm_s16le_mono",
		}).
		Post("/v1/synthesize")
	if err != nil {
		return fmt.Errorf("%w: request: %v", ErrFetch, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 300 {
		return fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode())
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := onChunk(chunk); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: stream read: %v", ErrFetch, readErr)
		}
	}
}
