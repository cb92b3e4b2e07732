package stream

import (
	"encoding/json"
	"strings"
)

// Channel names events carry on the wire. Content with no event name is
// answer content.
const (
	ChannelThinking = "thinking"
	ChannelAnswer   = "answer"
)

// frame is one parsed SSE event block.
type frame struct {
	event string
	data  string
	done  bool
}

// parseFrame decodes one event block: an optional "event:" line plus one
// or more "data:" lines, with multi-line data joined by newlines. A
// literal "[DONE]" data line marks the stream terminator and carries no
// content.
func parseFrame(block string) frame {
	var f frame
	var dataLines []string
	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			f.event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line[len("data:"):], " ")
			if strings.TrimSpace(value) == "[DONE]" {
				f.done = true
				return f
			}
			dataLines = append(dataLines, value)
		}
	}
	f.data = strings.Join(dataLines, "\n")
	return f
}

// decodePayload extracts the content carried by a data payload. A JSON
// object with a "content" field wins; anything else, including payloads
// that fail to parse, is used verbatim so plain-text emitters keep
// working.
func decodePayload(raw string) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return raw
	}
	inner, ok := payload["content"]
	if !ok {
		return raw
	}
	var content string
	if err := json.Unmarshal(inner, &content); err != nil {
		return raw
	}
	return content
}

// dispatchFrame routes one complete event block to the thinking or answer
// callback. Unknown event names are dropped.
func dispatchFrame(block string, onThinking, onAnswer func(string)) {
	f := parseFrame(block)
	if f.done || f.data == "" {
		return
	}
	content := decodePayload(f.data)
	if content == "" {
		return
	}
	switch f.event {
	case ChannelThinking:
		onThinking(content)
	case ChannelAnswer, "":
		onAnswer(content)
	}
}
