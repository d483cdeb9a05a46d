package scan

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Marker delimits a comment body in text output.
const Marker = "----- 8< ----"

// Output formats accepted by NewWriter.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewWriter returns the Emitter for the named format.
func NewWriter(format string, w io.Writer) (Emitter, error) {
	switch format {
	case "", FormatText:
		return NewTextWriter(w), nil
	case FormatJSON:
		return NewJSONWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (must be text or json)", format)
	}
}

// TextWriter writes each match as a readable block:
//
//	(blank)
//	* KEY summary
//	(blank)
//	Comment ID
//	----- 8< ----
//	body
//	----- 8< ----
//	(blank)
type TextWriter struct {
	w io.Writer
}

// NewTextWriter creates a TextWriter on w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// Emit writes one block.
func (t *TextWriter) Emit(m Match) error {
	_, err := fmt.Fprintf(t.w, "\n* %s %s\n\nComment %s\n%s\n%s\n%s\n\n",
		m.IssueKey, m.Summary, m.CommentID, Marker, m.Body, Marker)
	return err
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	enc *json.Encoder
}

// NewJSONWriter creates a JSONWriter on w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONWriter{enc: enc}
}

// Emit writes one line.
func (j *JSONWriter) Emit(m Match) error {
	return j.enc.Encode(m)
}

// ParseBlocks reads TextWriter output back into matches. Bodies are
// recovered verbatim as long as they contain no line equal to Marker.
func ParseBlocks(r io.Reader) ([]Match, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")

	var matches []Match
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "* ") {
			continue
		}

		var m Match
		header := strings.TrimPrefix(lines[i], "* ")
		if key, summary, ok := strings.Cut(header, " "); ok {
			m.IssueKey, m.Summary = key, summary
		} else {
			m.IssueKey = header
		}

		// blank, "Comment ID", marker
		if i+3 >= len(lines) || lines[i+1] != "" || !strings.HasPrefix(lines[i+2], "Comment ") || lines[i+3] != Marker {
			return nil, fmt.Errorf("line %d: malformed block header for %s", i+1, m.IssueKey)
		}
		m.CommentID = strings.TrimPrefix(lines[i+2], "Comment ")

		end := -1
		for j := i + 4; j < len(lines); j++ {
			if lines[j] == Marker {
				end = j
				break
			}
		}
		if end < 0 {
			return nil, fmt.Errorf("line %d: unterminated body for comment %s", i+4, m.CommentID)
		}
		m.Body = strings.Join(lines[i+4:end], "\n")
		matches = append(matches, m)
		i = end
	}
	return matches, nil
}
