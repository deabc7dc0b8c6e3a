package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/pretty"
)

// reArray is greedy and dot-all: it spans from the first '[' to the last ']'.
var reArray = regexp.MustCompile(`(?s)\[.*\]`)

var displayOptions = &pretty.Options{
	Width:    0, // no single-line arrays
	Prefix:   "",
	Indent:   "    ",
	SortKeys: false,
}

// Repaired is the outcome of turning a model answer into editable JSON text.
type Repaired struct {
	Raw       string // the model answer as received
	Candidate string // the substring that was parsed
	Text      string // formatted JSON when Valid, otherwise Candidate unchanged
	Valid     bool
	Err       error // wraps ErrInvalidJSON when !Valid
}

// Repair extracts the bracketed array from a free-form answer and formats it.
// Without a bracket pair the whole answer is the candidate. It never panics
// and never tries harder than that.
func Repair(raw string) Repaired {
	candidate := raw
	if loc := reArray.FindStringIndex(raw); loc != nil {
		candidate = raw[loc[0]:loc[1]]
	}
	out := Repaired{Raw: raw, Candidate: candidate}

	text, err := Format(candidate)
	if err != nil {
		out.Text = candidate
		out.Err = err
		return out
	}
	out.Text = text
	out.Valid = true
	return out
}

// Format re-serializes JSON text with a 4-space indent, keeping key order and
// number literals as written. Formatting formatted text is a no-op.
func Format(text string) (string, error) {
	if err := checkJSON(text); err != nil {
		return "", err
	}
	out := pretty.PrettyOptions([]byte(text), displayOptions)
	return strings.TrimSuffix(string(out), "\n"), nil
}

// ValidateEdited checks user-edited text. The text is kept as typed; only
// validity is decided here.
func ValidateEdited(text string) Repaired {
	out := Repaired{Raw: text, Candidate: text, Text: text}
	if err := checkJSON(text); err != nil {
		out.Err = err
		return out
	}
	out.Valid = true
	return out
}

func checkJSON(text string) error {
	var v json.RawMessage
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}
