package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"note-assistant/internal/session"
)

// ErrAborted reports a user-initiated cancellation, distinguished from
// transport failures so the caller can skip error display.
var ErrAborted = errors.New("stream: request aborted")

// ChatRequest is the body for both the streaming and plain chat
// endpoints.
type ChatRequest struct {
	Question           string            `json:"question"`
	Provider           string            `json:"provider"`
	Model              string            `json:"model"`
	History            []session.Message `json:"history"`
	EnableDeepThinking bool              `json:"enableDeepThinking"`
}

// ChatResponse is the non-streaming reply envelope. Data is left raw
// because backends disagree on its shape.
type ChatResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	// Raw keeps the full response body for callers that need fields
	// outside the envelope.
	Raw json.RawMessage `json:"-"`
}

// Callbacks receive incremental stream content. OnComplete fires exactly
// once on natural stream end and never after cancellation; cancellation
// surfaces through OnError as ErrAborted.
type Callbacks struct {
	OnThinking func(string)
	OnAnswer   func(string)
	OnError    func(error)
	OnComplete func()
}

// Client talks to the chat backend. Watchdog bounds how long a streaming
// request may run without reaching a terminal event; zero disables it.
type Client struct {
	HTTP     *http.Client
	Watchdog time.Duration
}

func NewClient(watchdog time.Duration) *Client {
	return &Client{
		HTTP:     &http.Client{},
		Watchdog: watchdog,
	}
}

// StreamChat issues one streaming chat request and feeds the decoded
// event blocks to the callbacks in arrival order. It returns when the
// stream ends, fails, or the context is cancelled.
func (c *Client) StreamChat(ctx context.Context, url string, reqBody ChatRequest, apiKey string, cb Callbacks) {
	if c.Watchdog > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Watchdog)
		defer cancel()
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		cb.OnError(err)
		return
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		cb.OnError(err)
		return
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-API-KEY", apiKey)

	resp, err := c.HTTP.Do(request)
	if err != nil {
		cb.OnError(classify(ctx, err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cb.OnError(statusError(resp))
		return
	}
	if resp.Body == http.NoBody {
		cb.OnError(errors.New("empty response body"))
		return
	}

	// Accumulate raw bytes and split on blank lines. Splitting on byte
	// boundaries keeps multi-byte sequences intact no matter how the
	// chunks arrive.
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			cb.OnError(classify(ctx, ctx.Err()))
			return
		}
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				i := bytes.Index(buf, []byte("\n\n"))
				if i < 0 {
					break
				}
				block := string(buf[:i])
				buf = buf[i+2:]
				if strings.TrimSpace(block) != "" {
					dispatchFrame(block, cb.OnThinking, cb.OnAnswer)
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if rest := string(buf); strings.TrimSpace(rest) != "" {
					dispatchFrame(rest, cb.OnThinking, cb.OnAnswer)
				}
				cb.OnComplete()
				return
			}
			cb.OnError(classify(ctx, readErr))
			return
		}
	}
}

// Chat issues the non-streaming variant, used for title generation.
func (c *Client) Chat(ctx context.Context, url string, reqBody ChatRequest, apiKey string) (*ChatResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-API-KEY", apiKey)

	resp, err := c.HTTP.Do(request)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusErrorFromBody(resp.StatusCode, body)
	}

	var out ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("malformed chat response: %w", err)
	}
	out.Raw = json.RawMessage(body)
	return &out, nil
}

// classify maps context cancellation to ErrAborted so callers can tell
// user stops apart from transport failures. Watchdog expiry stays a
// transport error.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return ErrAborted
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("stream timed out: %w", err)
	}
	return err
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	return statusErrorFromBody(resp.StatusCode, body)
}

func statusErrorFromBody(status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return fmt.Errorf("request failed (%d): %s", status, payload.Message)
	}
	return fmt.Errorf("request failed (%d)", status)
}
