package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"note-assistant/internal/session"
	"note-assistant/internal/stream"
)

const (
	titleMaxRunes     = 50
	titleAnswerSample = 200
	titleTimeout      = 15 * time.Second
)

// statusWords are backend acknowledgements that sometimes leak into the
// fields we probe for a title; none of them is a usable session name.
var statusWords = map[string]struct{}{
	"success":    {},
	"successful": {},
	"ok":         {},
	"完成":         {},
	"成功":         {},
}

// maybeAutoTitle renames the current session off the first exchange. It
// only fires when the session still carries its default name and holds
// exactly the opening question/answer pair, so a manual rename is never
// overwritten.
func (c *Controller) maybeAutoTitle(question, answer string) {
	id := c.sessions.CurrentSessionID()
	if id == "" || len(c.sessions.Messages()) != 2 {
		return
	}
	if !session.IsDefaultSessionName(c.sessions.CurrentSessionName()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	title, err := c.generateTitle(ctx, question, answer)
	if err != nil {
		c.log.Warn("title generation failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if title == "" {
		return
	}
	if err := c.sessions.RenameSession(id, title); err != nil {
		c.log.Warn("title rename rejected", map[string]interface{}{"title": title, "error": err.Error()})
	}
}

// generateTitle asks the backend for a short name summarizing the
// opening exchange. The title model settings override the chat ones
// when configured.
func (c *Controller) generateTitle(ctx context.Context, question, answer string) (string, error) {
	provider := c.opts.TitleProvider
	if provider == "" {
		provider = c.opts.Provider
	}
	model := c.opts.TitleModel
	if model == "" {
		model = c.opts.Model
	}
	apiKey := c.opts.TitleAPIKey
	if apiKey == "" {
		apiKey = c.opts.APIKey
	}

	sample := answer
	if runes := []rune(sample); len(runes) > titleAnswerSample {
		sample = string(runes[:titleAnswerSample])
	}
	prompt := fmt.Sprintf(
		"请根据以下对话内容,生成一个简洁的会话标题(不超过15个字,不要引号,直接输出标题):\n\n用户:%s\n\n助手:%s",
		question, sample)

	resp, err := c.client.Chat(ctx, strings.TrimRight(c.opts.BackendURL, "/")+"/chat", stream.ChatRequest{
		Question: prompt,
		Provider: provider,
		Model:    model,
	}, apiKey)
	if err != nil {
		return "", err
	}
	return extractTitle(resp), nil
}

// extractTitle probes the response for a usable title, preferring the
// data payload over the envelope and the envelope over the raw body.
// Backend status acknowledgements are never titles.
func extractTitle(resp *stream.ChatResponse) string {
	if resp == nil {
		return ""
	}
	var candidates []string

	if len(resp.Data) > 0 {
		if s, ok := rawString(resp.Data); ok {
			candidates = append(candidates, s)
		} else {
			candidates = append(candidates, probeFields(resp.Data)...)
		}
	}
	candidates = append(candidates, resp.Message)
	if len(resp.Raw) > 0 {
		candidates = append(candidates, probeFields(resp.Raw)...)
	}

	for _, cand := range candidates {
		if title := cleanTitle(cand); title != "" {
			return title
		}
	}
	return ""
}

// probeFields pulls string values out of a JSON object in a fixed
// preference order.
func probeFields(raw json.RawMessage) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	var out []string
	for _, key := range []string{"title", "content", "text", "answer"} {
		if v, ok := obj[key]; ok {
			if s, ok := rawString(v); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func rawString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// cleanTitle normalizes a candidate: strip wrapping quotes, collapse to
// the first line, cap the length, and reject status words and anything
// the rename validation would refuse.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.Trim(s, "\"'“”‘’「」『』")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, bad := statusWords[strings.ToLower(s)]; bad {
		return ""
	}
	if runes := []rune(s); len(runes) > titleMaxRunes {
		s = strings.TrimSpace(string(runes[:titleMaxRunes]))
	}
	if err := session.ValidateName(s); err != nil {
		return ""
	}
	return s
}
