package server

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"

	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// renderFieldDefinitions turns the field help shown next to the editor into
// HTML. goldmark escapes raw HTML by default.
func renderFieldDefinitions() (template.HTML, error) {
	md := goldmark.New()
	var buf bytes.Buffer
	if err := md.Convert([]byte(llm.FieldDefinitionsMarkdown()), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
