package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"note-assistant/internal/logx"
	"note-assistant/internal/session"
	"note-assistant/internal/stream"
)

// phase tracks where an exchange is in its lifecycle.
type phase int

const (
	phaseIdle phase = iota
	phaseOptimistic
	phaseStreaming
	phaseSucceeded
	phaseCancelled
	phaseFailed
)

const defaultRenderInterval = 120 * time.Millisecond

// Options carries the backend selection for outbound requests. The title
// fields override the chat settings for title generation when set.
type Options struct {
	BackendURL string
	Provider   string
	Model      string
	APIKey     string

	TitleProvider string
	TitleModel    string
	TitleAPIKey   string

	DeepThinking   bool
	RenderInterval time.Duration
}

// exchangeState is the per-exchange record: no cross-exchange mutable
// state survives outside it.
type exchangeState struct {
	id       string
	input    string
	thinking strings.Builder
	answer   strings.Builder
	answered bool
	phase    phase
	cancel   context.CancelFunc

	thinkingThrottle *renderThrottle
	answerThrottle   *renderThrottle
}

// Controller drives one question/answer exchange at a time: optimistic
// append, streaming render, rollback on failure, persistence and
// auto-titling on success.
type Controller struct {
	sessions *session.Manager
	client   *stream.Client
	renderer Renderer
	log      *logx.Logger
	opts     Options

	mu       sync.Mutex
	exchange *exchangeState
}

func NewController(sessions *session.Manager, client *stream.Client, renderer Renderer, log *logx.Logger, opts Options) *Controller {
	if opts.RenderInterval <= 0 {
		opts.RenderInterval = defaultRenderInterval
	}
	return &Controller{
		sessions: sessions,
		client:   client,
		renderer: renderer,
		log:      log,
		opts:     opts,
	}
}

// Streaming reports whether an exchange is in flight. While true, a new
// submission must be treated as a stop request.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchange != nil && c.exchange.phase == phaseStreaming
}

// Stop cancels the in-flight exchange, if any. Safe to call repeatedly
// and after natural completion.
func (c *Controller) Stop() {
	c.mu.Lock()
	ex := c.exchange
	c.mu.Unlock()
	if ex != nil && ex.cancel != nil {
		ex.cancel()
	}
}

// Send runs one full exchange and blocks until it reaches a terminal
// state. A second call while streaming is interpreted as a stop request.
func (c *Controller) Send(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	c.mu.Lock()
	if c.exchange != nil && c.exchange.phase == phaseStreaming {
		c.mu.Unlock()
		c.Stop()
		return nil
	}
	ex := &exchangeState{
		id:    uuid.NewString(),
		input: input,
		phase: phaseOptimistic,
	}
	ex.thinkingThrottle = newRenderThrottle(c.opts.RenderInterval, func() {
		c.renderer.RenderThinking(c.thinkingBuffer(ex))
	})
	ex.answerThrottle = newRenderThrottle(c.opts.RenderInterval, func() {
		c.renderer.RenderAnswer(c.answerBuffer(ex))
	})
	c.exchange = ex
	c.mu.Unlock()

	// Optimistic append: persist the question before streaming so a
	// crash mid-stream cannot lose it.
	c.sessions.AddMessage(session.Message{Role: session.RoleUser, Content: input})
	if err := c.sessions.SaveCurrent(); err != nil {
		c.sessions.RemoveLastMessage()
		c.finish(ex, phaseFailed)
		c.renderer.ShowError(err.Error())
		c.renderer.RestoreInput(input)
		return err
	}

	history := c.historyForRequest(input)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	ex.cancel = cancel
	ex.phase = phaseStreaming
	c.mu.Unlock()

	var terminalErr error
	c.client.StreamChat(streamCtx, strings.TrimRight(c.opts.BackendURL, "/")+"/chat/stream", stream.ChatRequest{
		Question:           input,
		Provider:           c.opts.Provider,
		Model:              c.opts.Model,
		History:            history,
		EnableDeepThinking: c.opts.DeepThinking,
	}, c.opts.APIKey, stream.Callbacks{
		OnThinking: func(delta string) {
			c.onThinking(ex, delta)
		},
		OnAnswer: func(delta string) {
			c.onAnswer(ex, delta)
		},
		OnError: func(err error) {
			terminalErr = err
		},
		OnComplete: func() {
			c.onComplete(ex)
		},
	})

	if terminalErr != nil {
		if errors.Is(terminalErr, stream.ErrAborted) {
			c.onCancelled(ex)
			return nil
		}
		c.onFailed(ex, terminalErr)
		return terminalErr
	}
	return nil
}

func (c *Controller) thinkingBuffer(ex *exchangeState) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ex.thinking.String()
}

func (c *Controller) answerBuffer(ex *exchangeState) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ex.answer.String()
}

func (c *Controller) onThinking(ex *exchangeState, delta string) {
	c.mu.Lock()
	if ex.phase != phaseStreaming {
		c.mu.Unlock()
		return
	}
	ex.thinking.WriteString(delta)
	c.mu.Unlock()
	ex.thinkingThrottle.trigger()
}

func (c *Controller) onAnswer(ex *exchangeState, delta string) {
	c.mu.Lock()
	if ex.phase != phaseStreaming {
		c.mu.Unlock()
		return
	}
	first := !ex.answered && strings.TrimSpace(delta) != ""
	if first {
		ex.answered = true
	}
	ex.answer.WriteString(delta)
	c.mu.Unlock()
	if first {
		c.renderer.CollapseThinking()
	}
	ex.answerThrottle.trigger()
}

func (c *Controller) onComplete(ex *exchangeState) {
	if !c.finish(ex, phaseSucceeded) {
		return
	}

	thinking := ex.thinking.String()
	answer := ex.answer.String()

	// Final render of both buffers, past the throttle.
	if thinking != "" {
		c.renderer.RenderThinking(thinking)
	}
	c.renderer.RenderAnswer(answer)

	if answer != "" {
		c.sessions.AddMessage(session.Message{
			Role:     session.RoleAssistant,
			Content:  answer,
			Thinking: thinking,
		})
		if err := c.sessions.SaveCurrent(); err != nil {
			c.log.Error("save after exchange failed", map[string]interface{}{"exchange": ex.id, "error": err.Error()})
			return
		}
		c.maybeAutoTitle(ex.input, answer)
	}
}

// onCancelled rolls back the optimistic user message from memory and
// storage and hands the typed text back to the input.
func (c *Controller) onCancelled(ex *exchangeState) {
	if !c.finish(ex, phaseCancelled) {
		return
	}
	c.rollback(ex)
	c.renderer.RestoreInput(ex.input)
}

// onFailed shows the transport error in place of the assistant response,
// rolls back the optimistic user message, and restores the input.
func (c *Controller) onFailed(ex *exchangeState, err error) {
	if !c.finish(ex, phaseFailed) {
		return
	}
	c.rollback(ex)
	c.renderer.ShowError(err.Error())
	c.renderer.RestoreInput(ex.input)
}

// finish moves the exchange to a terminal phase exactly once and stops
// any pending render timers.
func (c *Controller) finish(ex *exchangeState, terminal phase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ex.phase != phaseOptimistic && ex.phase != phaseStreaming {
		return false
	}
	ex.phase = terminal
	ex.thinkingThrottle.stop()
	ex.answerThrottle.stop()
	return true
}

func (c *Controller) rollback(ex *exchangeState) {
	if _, ok := c.sessions.RemoveLastMessage(); ok {
		if err := c.sessions.SaveCurrent(); err != nil {
			c.log.Error("rollback save failed", map[string]interface{}{"exchange": ex.id, "error": err.Error()})
		}
	}
}

// historyForRequest is the prior conversation without the question that
// was just appended, so the backend does not see it twice.
func (c *Controller) historyForRequest(input string) []session.Message {
	msgs := c.sessions.Messages()
	if n := len(msgs); n > 0 {
		last := msgs[n-1]
		if last.Role == session.RoleUser && last.Content == input {
			msgs = msgs[:n-1]
		}
	}
	out := make([]session.Message, len(msgs))
	copy(out, msgs)
	return out
}
