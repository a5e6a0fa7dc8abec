package triage

import (
	"regexp"
	"strings"
)

// Uncertain spans look like {{heard??alt1/alt2}}.
var uncertainSpan = regexp.MustCompile(`\{\{([^{}]*?)\?\?([^{}]*?)\}\}`)

type Span struct {
	Text string
	// Uncertain spans carry the transcriber's alternative readings; Text holds
	// the best guess.
	Uncertain    bool
	Alternatives []string
}

// ParseTranscript splits text into plain and uncertain spans. Anything that is
// not a well-formed marker is kept verbatim.
func ParseTranscript(text string) []Span {
	matches := uncertainSpan.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		if text == "" {
			return nil
		}

		return []Span{{Text: text}}
	}

	spans := make([]Span, 0, 2*len(matches)+1)
	last := 0

	for _, match := range matches {
		start, end := match[0], match[1]
		if start > last {
			spans = append(spans, Span{Text: text[last:start]})
		}

		spans = append(spans, Span{
			Text:         text[match[2]:match[3]],
			Uncertain:    true,
			Alternatives: splitAlternatives(text[match[4]:match[5]]),
		})

		last = end
	}

	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}

	return spans
}

func splitAlternatives(raw string) []string {
	parts := strings.Split(raw, "/")
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}

// PlainTranscript replaces every marker by its best-guess text.
func PlainTranscript(text string) string {
	var sb strings.Builder

	for _, span := range ParseTranscript(text) {
		sb.WriteString(span.Text)
	}

	return sb.String()
}

// AnnotatedTranscript renders uncertain spans as [heard? alt1|alt2] for terminals.
func AnnotatedTranscript(text string) string {
	var sb strings.Builder

	for _, span := range ParseTranscript(text) {
		if !span.Uncertain {
			sb.WriteString(span.Text)
			continue
		}

		sb.WriteString("[")
		sb.WriteString(span.Text)
		sb.WriteString("?")

		if len(span.Alternatives) > 0 {
			sb.WriteString(" ")
			sb.WriteString(strings.Join(span.Alternatives, "|"))
		}

		sb.WriteString("]")
	}

	return sb.String()
}
