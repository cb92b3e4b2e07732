package chat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"note-assistant/internal/logx"
	"note-assistant/internal/session"
	"note-assistant/internal/store"
	"note-assistant/internal/stream"
)

type recordingRenderer struct {
	mu sync.Mutex

	thinking  string
	answer    string
	collapsed bool
	errors    []string
	restored  []string

	onAnswer func()
}

func (r *recordingRenderer) RenderThinking(buf string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thinking = buf
}

func (r *recordingRenderer) RenderAnswer(buf string) {
	r.mu.Lock()
	r.answer = buf
	hook := r.onAnswer
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (r *recordingRenderer) CollapseThinking() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collapsed = true
}

func (r *recordingRenderer) ShowError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recordingRenderer) RestoreInput(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restored = append(r.restored, text)
}

func newTestController(t *testing.T, handler http.Handler, renderer Renderer) (*Controller, *session.Manager, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	mgr := session.NewManager(&store.DiskStore{Root: t.TempDir()}, logx.New(io.Discard))
	if err := mgr.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	ctrl := NewController(mgr, stream.NewClient(0), renderer, logx.New(io.Discard), Options{
		BackendURL:     srv.URL,
		Provider:       "deepseek",
		Model:          "deepseek-chat",
		APIKey:         "test-key",
		RenderInterval: 5 * time.Millisecond,
	})
	return ctrl, mgr, srv
}

func TestSend_SuccessPersistsExchangeAndTitles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, block := range []string{
			"event: thinking\ndata: weighing options\n\n",
			"data: The answer\n\n",
			"data:  is 42.\n\n",
			"data: [DONE]\n\n",
		} {
			_, _ = w.Write([]byte(block))
			flusher.Flush()
		}
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"title":"Deep questions"}}`))
	})

	rec := &recordingRenderer{}
	ctrl, mgr, _ := newTestController(t, mux, rec)

	if err := ctrl.Send(context.Background(), "what is the answer?"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs := mgr.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != session.RoleUser || msgs[0].Content != "what is the answer?" {
		t.Fatalf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != session.RoleAssistant {
		t.Fatalf("second message role = %q", msgs[1].Role)
	}
	if msgs[1].Content != "The answer is 42." {
		t.Fatalf("assistant content = %q", msgs[1].Content)
	}
	if msgs[1].Thinking != "weighing options" {
		t.Fatalf("assistant thinking = %q", msgs[1].Thinking)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.collapsed {
		t.Fatal("CollapseThinking not fired on first answer delta")
	}
	if rec.answer != "The answer is 42." {
		t.Fatalf("final rendered answer = %q", rec.answer)
	}
	if len(rec.errors) != 0 {
		t.Fatalf("unexpected errors: %v", rec.errors)
	}

	if mgr.CurrentSession().SessionName != "Deep questions" {
		t.Fatalf("session name = %q, want generated title", mgr.CurrentSession().SessionName)
	}

	// The persisted file must match the in-memory state.
	loaded, err := mgr.LoadSession(mgr.CurrentSessionID())
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("persisted messages = %d, want 2", len(loaded.Messages))
	}
}

func TestSend_TransportErrorRollsBack(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"backend down"}`))
	})

	rec := &recordingRenderer{}
	ctrl, mgr, _ := newTestController(t, mux, rec)

	err := ctrl.Send(context.Background(), "doomed question")
	if err == nil {
		t.Fatal("Send returned nil on transport error")
	}

	if got := len(mgr.Messages()); got != 0 {
		t.Fatalf("messages after rollback = %d, want 0", got)
	}
	loaded, loadErr := mgr.LoadSession(mgr.CurrentSessionID())
	if loadErr != nil {
		t.Fatalf("LoadSession: %v", loadErr)
	}
	if len(loaded.Messages) != 0 {
		t.Fatalf("persisted messages after rollback = %d, want 0", len(loaded.Messages))
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 1 {
		t.Fatalf("errors = %v, want one", rec.errors)
	}
	if len(rec.restored) != 1 || rec.restored[0] != "doomed question" {
		t.Fatalf("restored = %v, want the typed input back", rec.restored)
	}
}

func TestSend_StopRollsBackWithoutError(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: partial answ\n\n"))
		flusher.Flush()
		<-release
	})

	rec := &recordingRenderer{}
	ctrl, mgr, _ := newTestController(t, mux, rec)
	defer close(release)

	var once sync.Once
	rec.onAnswer = func() {
		once.Do(ctrl.Stop)
	}

	if err := ctrl.Send(context.Background(), "stop me"); err != nil {
		t.Fatalf("Send after stop = %v, want nil", err)
	}

	if got := len(mgr.Messages()); got != 0 {
		t.Fatalf("messages after cancel = %d, want 0", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 0 {
		t.Fatalf("cancel produced errors: %v", rec.errors)
	}
	if len(rec.restored) != 1 || rec.restored[0] != "stop me" {
		t.Fatalf("restored = %v, want the typed input back", rec.restored)
	}
	if ctrl.Streaming() {
		t.Fatal("still streaming after cancel")
	}
}

func TestSend_BlankInputIsNoOp(t *testing.T) {
	rec := &recordingRenderer{}
	ctrl, mgr, _ := newTestController(t, http.NewServeMux(), rec)

	if err := ctrl.Send(context.Background(), "   "); err != nil {
		t.Fatalf("Send blank: %v", err)
	}
	if len(mgr.Messages()) != 0 {
		t.Fatal("blank input appended a message")
	}
}

func TestStop_SafeWhenIdle(t *testing.T) {
	rec := &recordingRenderer{}
	ctrl, _, _ := newTestController(t, http.NewServeMux(), rec)

	ctrl.Stop()
	ctrl.Stop()
	if ctrl.Streaming() {
		t.Fatal("Streaming true while idle")
	}
}

// Mirrors the TUI wiring: Send runs on its own goroutine while the UI
// goroutine rebuilds its view from the session on every render frame.
// Run with -race to check the manager interlocking.
func TestSend_ConcurrentViewReadsDuringExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; i < 20; i++ {
			_, _ = w.Write([]byte("data: chunk\n\n"))
			flusher.Flush()
			time.Sleep(2 * time.Millisecond)
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})

	frames := make(chan struct{}, 64)
	rec := &recordingRenderer{onAnswer: func() {
		select {
		case frames <- struct{}{}:
		default:
		}
	}}
	ctrl, mgr, _ := newTestController(t, mux, rec)

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Send(context.Background(), "stream while I read")
	}()

	for {
		select {
		case <-frames:
			for _, msg := range mgr.Messages() {
				_ = msg.Content
			}
			_ = mgr.CurrentSessionName()
			_ = mgr.AllSessions()
		case err := <-done:
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if got := len(mgr.Messages()); got != 2 {
				t.Fatalf("messages = %d, want 2", got)
			}
			return
		case <-time.After(5 * time.Second):
			t.Fatal("exchange did not finish")
		}
	}
}
