package stream

import "testing"

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name      string
		block     string
		wantEvent string
		wantData  string
		wantDone  bool
	}{
		{
			name:     "data only",
			block:    "data: Hello",
			wantData: "Hello",
		},
		{
			name:      "named event",
			block:     "event: thinking\ndata: pondering",
			wantEvent: "thinking",
			wantData:  "pondering",
		},
		{
			name:     "multi line data joined with newline",
			block:    "data: line one\ndata: line two",
			wantData: "line one\nline two",
		},
		{
			name:     "only first space stripped",
			block:    "data:  indented",
			wantData: " indented",
		},
		{
			name:     "no space after colon",
			block:    "data:tight",
			wantData: "tight",
		},
		{
			name:     "terminator",
			block:    "data: [DONE]",
			wantDone: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := parseFrame(tc.block)
			if f.event != tc.wantEvent || f.data != tc.wantData || f.done != tc.wantDone {
				t.Fatalf("parseFrame(%q) = %+v, want event=%q data=%q done=%v",
					tc.block, f, tc.wantEvent, tc.wantData, tc.wantDone)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "json content", in: `{"content":"hi"}`, want: "hi"},
		{name: "json without content is verbatim", in: `{"other":"x"}`, want: `{"other":"x"}`},
		{name: "json content wrong type is verbatim", in: `{"content":5}`, want: `{"content":5}`},
		{name: "plain text", in: "just text", want: "just text"},
		{name: "broken json is verbatim", in: `{"content":`, want: `{"content":`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := decodePayload(tc.in); got != tc.want {
				t.Fatalf("decodePayload(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDispatchFrame(t *testing.T) {
	tests := []struct {
		name         string
		block        string
		wantThinking string
		wantAnswer   string
	}{
		{name: "default channel is answer", block: "data: Hello", wantAnswer: "Hello"},
		{name: "explicit answer", block: "event: answer\ndata: Hi", wantAnswer: "Hi"},
		{name: "thinking", block: "event: thinking\ndata: hm", wantThinking: "hm"},
		{name: "unknown event dropped", block: "event: metrics\ndata: 42"},
		{name: "done carries nothing", block: "data: [DONE]"},
		{name: "json payload unwrapped", block: `data: {"content":"wrapped"}`, wantAnswer: "wrapped"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var thinking, answer string
			dispatchFrame(tc.block,
				func(s string) { thinking += s },
				func(s string) { answer += s })
			if thinking != tc.wantThinking || answer != tc.wantAnswer {
				t.Fatalf("dispatchFrame(%q): thinking=%q answer=%q, want %q / %q",
					tc.block, thinking, answer, tc.wantThinking, tc.wantAnswer)
			}
		})
	}
}
