package normalize

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/csheth/ragdesk/internal/backend"
)

func TestNormalizePlainStringRoundTrips(t *testing.T) {
	t.Parallel()

	payload, err := Normalize(json.RawMessage(`"plain text"`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if payload.Text != "plain text" {
		t.Fatalf("text = %q, want %q", payload.Text, "plain text")
	}
	if payload.Confidence != nil || payload.Sources != nil || payload.Reflection != nil {
		t.Fatalf("degenerate case should carry only text, got %+v", payload)
	}
}

func TestNormalizeContentShape(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{"content":"the answer","sources":[{"label":"notes.txt","excerpt":"chunk one"},"manual.pdf"]}`)
	payload, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if payload.Text != "the answer" {
		t.Fatalf("text = %q", payload.Text)
	}
	if len(payload.Sources) != 2 {
		t.Fatalf("sources = %#v, want 2 entries", payload.Sources)
	}
	if payload.Sources[0].Label != "notes.txt" || payload.Sources[0].Excerpt != "chunk one" {
		t.Fatalf("object source mangled: %+v", payload.Sources[0])
	}
	if payload.Sources[1].Label != "manual.pdf" {
		t.Fatalf("string source mangled: %+v", payload.Sources[1])
	}
}

func TestNormalizeAnswerString(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"answer": "short answer",
		"confidence": 0.75,
		"reflection": {"understanding": "clear question", "search_strategy": "keyword match", "follow_up_questions": ["anything else?"]},
		"documents": ["guide.pdf"]
	}`)
	payload, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if payload.Text != "short answer" {
		t.Fatalf("text = %q", payload.Text)
	}
	if payload.Confidence == nil || *payload.Confidence != 0.75 {
		t.Fatalf("confidence = %v, want 0.75", payload.Confidence)
	}
	if payload.Reflection == nil {
		t.Fatal("reflection dropped")
	}
	if payload.Reflection.Understanding != "clear question" {
		t.Fatalf("understanding = %q", payload.Reflection.Understanding)
	}
	if payload.Reflection.StrategyOrConfidence != "keyword match" {
		t.Fatalf("strategy = %q", payload.Reflection.StrategyOrConfidence)
	}
	if len(payload.Reflection.FollowUpQuestions) != 1 {
		t.Fatalf("follow-ups = %v", payload.Reflection.FollowUpQuestions)
	}
	if len(payload.Sources) != 1 || payload.Sources[0].Label != "guide.pdf" {
		t.Fatalf("documents not carried into sources: %+v", payload.Sources)
	}
}

func TestNormalizeAnswerMapFlattens(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{"answer": {"main_points": ["first", "second"], "summary": "done"}}`)
	payload, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	wantFragments := []string{"Main Points:", "first\nsecond", "Summary:", "done"}
	for _, fragment := range wantFragments {
		if !strings.Contains(payload.Text, fragment) {
			t.Fatalf("text missing %q:\n%s", fragment, payload.Text)
		}
	}
	if got := payload.Structured["main_points"]; len(got) != 2 {
		t.Fatalf("structured sections dropped: %#v", payload.Structured)
	}
}

func TestNormalizeFindingsShape(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"findings": {"Topic A": ["p1", "p2"]},
		"evidence": ["e1"],
		"confidence": 0.8
	}`)
	payload, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	text := payload.Text
	topicIdx := strings.Index(text, "Topic A")
	p1Idx := strings.Index(text, "p1")
	p2Idx := strings.Index(text, "p2")
	if topicIdx < 0 || p1Idx < topicIdx || p2Idx < p1Idx {
		t.Fatalf("topic ordering broken:\n%s", text)
	}
	evidenceIdx := strings.Index(text, "Evidence:")
	if evidenceIdx < p2Idx {
		t.Fatalf("evidence section missing or misplaced:\n%s", text)
	}
	if !strings.HasSuffix(strings.TrimSpace(text), "e1") {
		t.Fatalf("text should end with the evidence items:\n%s", text)
	}
	if payload.Confidence == nil || *payload.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want 0.8", payload.Confidence)
	}
}

func TestNormalizeFindingsSectionOrder(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"findings": {"T": ["f"]},
		"limitations": ["l1"],
		"recommendations": ["r1"],
		"evidence": ["e1"]
	}`)
	payload, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	e := strings.Index(payload.Text, "Evidence:")
	r := strings.Index(payload.Text, "Recommendations:")
	l := strings.Index(payload.Text, "Limitations:")
	if e < 0 || r < 0 || l < 0 || !(e < r && r < l) {
		t.Fatalf("sections out of order (e=%d r=%d l=%d):\n%s", e, r, l, payload.Text)
	}
}

func TestNormalizeFindingsOmitsEmptySections(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{"findings": {"T": ["f"]}, "evidence": [], "limitations": null}`)
	payload, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	for _, header := range []string{"Evidence:", "Recommendations:", "Limitations:"} {
		if strings.Contains(payload.Text, header) {
			t.Fatalf("empty section %q rendered:\n%s", header, payload.Text)
		}
	}
}

func TestNormalizeBackendFailureIsQueryError(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{"success": false, "message": "index unavailable"}`)
	_, err := Normalize(raw)
	var queryErr *backend.QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("want *backend.QueryError, got %v", err)
	}
	if queryErr.Message != "index unavailable" {
		t.Fatalf("backend message not carried verbatim: %q", queryErr.Message)
	}
}

func TestNormalizeStatusErrorIsQueryError(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{"status": "error", "message": "bad query"}`)
	_, err := Normalize(raw)
	var queryErr *backend.QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("want *backend.QueryError, got %v", err)
	}
}

func TestNormalizeUnknownShapeFailsLoudly(t *testing.T) {
	t.Parallel()

	_, err := Normalize(json.RawMessage(`{"surprise": true}`))
	if err == nil {
		t.Fatal("unknown shape must not fall through silently")
	}
	if !strings.Contains(err.Error(), "unrecognized response shape") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii untouched", "hello", "hello"},
		{"unicode escapes", `\u4f60\u597d`, "你好"},
		{"percent encoded", "caf%C3%A9", "café"},
		{"broken percent passes through", "100% sure", "100% sure"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := decodeText(tt.in); got != tt.want {
				t.Fatalf("decodeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
