package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WebsocketProvider streams synthesis chunks over a persistent websocket
// connection, reusing the connection across calls the way a teacher-style
// TTS client does -- dial once, write one request per utterance, read
// binary frames until an end-of-stream marker.
type WebsocketProvider struct {
	apiKey  string
	host    string
	path    string
	scheme  string // "wss" in production; tests override to "ws" against httptest
	voiceID string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebsocketProvider builds a provider that dials host/path with apiKey
// as a query credential, requesting voiceID for every utterance.
func NewWebsocketProvider(host, path, apiKey, voiceID string) *WebsocketProvider {
	if path == "" {
		path = "/ws"
	}
	return &WebsocketProvider{apiKey: apiKey, host: host, path: path, voiceID: voiceID, scheme: "wss"}
}

func (w *WebsocketProvider) getConn(ctx context.Context) (*websocket.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return w.conn, nil
	}

	u := url.URL{Scheme: w.scheme, Host: w.host, Path: w.path, RawQuery: "api_key=" + w.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrFetch, err)
	}
	w.conn = conn
	return conn, nil
}

func (w *WebsocketProvider) dropConn(conn *websocket.Conn) {
	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()
}

// Synthesize implements Fetcher.
func (w *WebsocketProvider) Synthesize(ctx context.Context, text string, excitement int, timeout time.Duration, onChunk func([]byte) error) error {
	return runWithDeadline(ctx, timeout, func(fetchCtx context.Context, onChunk func([]byte) error) error {
		return w.stream(fetchCtx, text, excitement, onChunk)
	}, onChunk)
}

func (w *WebsocketProvider) stream(ctx context.Context, text string, excitement int, onChunk func([]byte) error) error {
	conn, err := w.getConn(ctx)
	if err != nil {
		return err
	}

	req := map[string]interface{}{
		"text":       text,
		"voice":      w.voiceID,
		"excitement": excitement,
		"speed":      1.0 + float64(excitement)*0.01,
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		w.dropConn(conn)
		conn.Close(websocket.StatusAbnormalClosure, "write failed")
		return fmt.Errorf("%w: send request: %v", ErrFetch, err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			w.dropConn(conn)
			conn.Close(websocket.StatusAbnormalClosure, "read failed")
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: read: %v", ErrFetch, err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			switch {
			case msg == "EOS":
				return nil
			case len(msg) >= 4 && msg[:4] == "ERR:":
				return fmt.Errorf("%w: provider reported: %s", ErrFetch, msg)
			}
		}
	}
}

// Close releases the underlying connection, if any.
func (w *WebsocketProvider) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close(websocket.StatusNormalClosure, "")
	w.conn = nil
	return err
}
