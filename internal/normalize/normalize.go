// Package normalize reconciles the response shapes the knowledge backends
// emit into one canonical assistant payload. Classification happens once,
// up front; an unrecognized shape is an error, never a silent fallthrough.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/csheth/ragdesk/internal/backend"
)

// Payload is the canonical assistant message body.
type Payload struct {
	Text       string
	Confidence *float64
	Sources    []Source
	Reflection *Reflection
	Structured map[string][]string
}

// Source points at a store document backing an answer.
type Source struct {
	Label   string
	Excerpt string
}

// Reflection is the backend's self-assessment, passed through untouched.
type Reflection struct {
	Understanding        string
	StrategyOrConfidence string
	FollowUpQuestions    []string
}

// shape enumerates every wire form seen in the wild. Keeping the set closed
// lets tests prove that a new backend shape fails loudly.
type shape int

const (
	shapePlainText shape = iota
	shapeContent
	shapeAnswer
	shapeFindings
	shapeFailure
)

// Normalize classifies raw and produces the canonical payload. A backend
// envelope reporting failure comes back as a *backend.QueryError; a shape
// outside the known set is a plain error.
func Normalize(raw json.RawMessage) (Payload, error) {
	kind, fields, text, err := classify(raw)
	if err != nil {
		return Payload{}, err
	}
	switch kind {
	case shapePlainText:
		return Payload{Text: decodeText(text)}, nil
	case shapeContent:
		return normalizeContent(fields)
	case shapeAnswer:
		return normalizeAnswer(fields)
	case shapeFindings:
		return normalizeFindings(fields)
	case shapeFailure:
		return Payload{}, &backend.QueryError{Message: failureMessage(fields)}
	default:
		return Payload{}, fmt.Errorf("unhandled response shape %d", kind)
	}
}

func classify(raw json.RawMessage) (shape, map[string]json.RawMessage, string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return shapePlainText, nil, text, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, nil, "", fmt.Errorf("undecodable response payload: %w", err)
	}
	switch {
	case reportsFailure(fields):
		return shapeFailure, fields, "", nil
	case hasString(fields, "content"):
		return shapeContent, fields, "", nil
	case hasKey(fields, "answer"):
		return shapeAnswer, fields, "", nil
	case hasKey(fields, "findings"):
		return shapeFindings, fields, "", nil
	}
	return 0, nil, "", fmt.Errorf("unrecognized response shape (keys: %s)", strings.Join(keysOf(fields), ", "))
}

func hasKey(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	return ok && string(raw) != "null"
}

func hasString(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	var s string
	return json.Unmarshal(raw, &s) == nil
}

func normalizeContent(fields map[string]json.RawMessage) (Payload, error) {
	var content string
	if err := json.Unmarshal(fields["content"], &content); err != nil {
		return Payload{}, fmt.Errorf("content field: %w", err)
	}
	payload := Payload{
		Text:    decodeText(content),
		Sources: decodeSources(fields["sources"]),
	}
	return payload, nil
}

func normalizeAnswer(fields map[string]json.RawMessage) (Payload, error) {
	payload := Payload{
		Confidence: decodeConfidence(fields["confidence"]),
		Reflection: decodeReflection(fields["reflection"]),
		Sources:    decodeSources(fields["documents"]),
	}

	raw := fields["answer"]
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		payload.Text = decodeText(text)
		return payload, nil
	}
	sections, err := decodeStringListMap(raw)
	if err != nil {
		return Payload{}, fmt.Errorf("answer field: %w", err)
	}
	payload.Structured = sections
	var b strings.Builder
	for _, key := range sortedKeys(sections) {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(titleCase(key))
		b.WriteString(":\n")
		b.WriteString(decodeText(strings.Join(sections[key], "\n")))
	}
	payload.Text = b.String()
	return payload, nil
}

func normalizeFindings(fields map[string]json.RawMessage) (Payload, error) {
	findings, err := decodeStringListMap(fields["findings"])
	if err != nil {
		return Payload{}, fmt.Errorf("findings field: %w", err)
	}
	var b strings.Builder
	for _, topic := range sortedKeys(findings) {
		if len(findings[topic]) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(topic)
		b.WriteString(":\n")
		b.WriteString(decodeText(strings.Join(findings[topic], "\n")))
	}
	// Trailing sections in fixed order; each omitted when absent or empty.
	for _, section := range []struct {
		key   string
		title string
	}{
		{"evidence", "Evidence"},
		{"recommendations", "Recommendations"},
		{"limitations", "Limitations"},
	} {
		items := decodeStringList(fields[section.key])
		if len(items) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(section.title)
		b.WriteString(":\n")
		b.WriteString(decodeText(strings.Join(items, "\n")))
	}
	return Payload{
		Text:       b.String(),
		Confidence: decodeConfidence(fields["confidence"]),
		Reflection: decodeReflection(fields["reflection"]),
		Structured: findings,
	}, nil
}

func reportsFailure(fields map[string]json.RawMessage) bool {
	var success bool
	if raw, ok := fields["success"]; ok {
		if err := json.Unmarshal(raw, &success); err == nil && !success {
			return true
		}
	}
	var status string
	if raw, ok := fields["status"]; ok {
		if err := json.Unmarshal(raw, &status); err == nil && status == "error" {
			return true
		}
	}
	return false
}

func failureMessage(fields map[string]json.RawMessage) string {
	for _, key := range []string{"detail", "message", "error", "content"} {
		var msg string
		if raw, ok := fields[key]; ok {
			if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
				return msg
			}
		}
	}
	return "backend reported failure"
}

func decodeConfidence(raw json.RawMessage) *float64 {
	if raw == nil {
		return nil
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return &value
}

func decodeReflection(raw json.RawMessage) *Reflection {
	if raw == nil {
		return nil
	}
	var wire struct {
		Understanding     string   `json:"understanding"`
		SearchStrategy    string   `json:"search_strategy"`
		Confidence        *float64 `json:"confidence"`
		FollowUpQuestions []string `json:"follow_up_questions"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}
	reflection := Reflection{
		Understanding:     decodeText(wire.Understanding),
		FollowUpQuestions: wire.FollowUpQuestions,
	}
	switch {
	case wire.SearchStrategy != "":
		reflection.StrategyOrConfidence = decodeText(wire.SearchStrategy)
	case wire.Confidence != nil:
		reflection.StrategyOrConfidence = fmt.Sprintf("confidence %.2f", *wire.Confidence)
	}
	if reflection.Understanding == "" && reflection.StrategyOrConfidence == "" && len(reflection.FollowUpQuestions) == 0 {
		return nil
	}
	return &reflection
}

// decodeSources accepts both [{label, excerpt}] objects and bare strings.
func decodeSources(raw json.RawMessage) []Source {
	if raw == nil {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	sources := make([]Source, 0, len(entries))
	for _, entry := range entries {
		var label string
		if err := json.Unmarshal(entry, &label); err == nil {
			sources = append(sources, Source{Label: decodeText(label)})
			continue
		}
		var wire struct {
			Label   string `json:"label"`
			Name    string `json:"name"`
			Source  string `json:"source"`
			Excerpt string `json:"excerpt"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(entry, &wire); err != nil {
			continue
		}
		source := Source{Label: wire.Label, Excerpt: wire.Excerpt}
		if source.Label == "" {
			source.Label = wire.Name
		}
		if source.Label == "" {
			source.Label = wire.Source
		}
		if source.Excerpt == "" {
			source.Excerpt = wire.Text
		}
		if source.Label == "" && source.Excerpt == "" {
			continue
		}
		source.Label = decodeText(source.Label)
		source.Excerpt = decodeText(source.Excerpt)
		sources = append(sources, source)
	}
	if len(sources) == 0 {
		return nil
	}
	return sources
}

// decodeStringListMap accepts map values that are either a single string or
// a list of strings.
func decodeStringListMap(raw json.RawMessage) (map[string][]string, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing value")
	}
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	result := make(map[string][]string, len(wire))
	for key, value := range wire {
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			result[key] = []string{single}
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err != nil {
			return nil, fmt.Errorf("value for %q is neither string nor list", key)
		}
		result[key] = list
	}
	return result, nil
}

func decodeStringList(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func keysOf(m map[string]json.RawMessage) []string {
	return sortedKeys(m)
}

// titleCase upper-cases the first rune of each word, treating underscores
// as word separators (backend keys arrive in snake_case).
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		if len(runes) > 0 {
			runes[0] = upperRune(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func upperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
