package chat

import (
	"encoding/json"
	"strings"
	"testing"

	"note-assistant/internal/stream"
)

func respFromJSON(t *testing.T, body string) *stream.ChatResponse {
	t.Helper()
	var resp stream.ChatResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	resp.Raw = json.RawMessage(body)
	return &resp
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "data as plain string",
			body: `{"success":true,"data":"会议纪要"}`,
			want: "会议纪要",
		},
		{
			name: "data object title field",
			body: `{"success":true,"data":{"title":"Project plan"}}`,
			want: "Project plan",
		},
		{
			name: "data object content over text",
			body: `{"success":true,"data":{"content":"From content","text":"From text"}}`,
			want: "From content",
		},
		{
			name: "envelope message fallback",
			body: `{"success":true,"message":"Weekly review"}`,
			want: "Weekly review",
		},
		{
			name: "top level field fallback",
			body: `{"success":true,"answer":"Top level answer"}`,
			want: "Top level answer",
		},
		{
			name: "status word skipped in favor of next candidate",
			body: `{"success":true,"data":{"title":"success","content":"Real title"}}`,
			want: "Real title",
		},
		{
			name: "chinese status word rejected",
			body: `{"success":true,"data":"成功"}`,
			want: "",
		},
		{
			name: "quotes stripped",
			body: `{"success":true,"data":"\"Quoted title\""}`,
			want: "Quoted title",
		},
		{
			name: "first line only",
			body: `{"success":true,"data":"Title line\nsecond line"}`,
			want: "Title line",
		},
		{
			name: "invalid filename chars rejected",
			body: `{"success":true,"data":"a/b"}`,
			want: "",
		},
		{
			name: "nothing usable",
			body: `{"success":false}`,
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := extractTitle(respFromJSON(t, tc.body))
			if got != tc.want {
				t.Fatalf("extractTitle = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractTitle_CapsLongTitles(t *testing.T) {
	long := strings.Repeat("长", 80)
	resp := respFromJSON(t, `{"success":true,"data":`+mustJSON(t, long)+`}`)
	got := extractTitle(resp)
	if runes := []rune(got); len(runes) != 50 {
		t.Fatalf("len = %d runes, want 50", len(runes))
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Notes", want: "Notes"},
		{name: "whitespace", in: "  Notes  ", want: "Notes"},
		{name: "curly quotes", in: "“引用标题”", want: "引用标题"},
		{name: "corner brackets", in: "「标题」", want: "标题"},
		{name: "ok mixed case status", in: "OK", want: ""},
		{name: "successful", in: "Successful", want: ""},
		{name: "empty after strip", in: `""`, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanTitle(tc.in); got != tc.want {
				t.Fatalf("cleanTitle(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}
