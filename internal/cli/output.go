package cli

import (
	"io"

	json "github.com/goccy/go-json"
)

// write prints v as indented JSON or through text, depending on format.
func write(w io.Writer, format string, v any, text func(io.Writer) error) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
