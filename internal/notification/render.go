package notification

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

// Vars are the substitution values of a template.
type Vars map[string]string

func execute(text string, vars Vars) (string, error) {
	return fasttemplate.ExecuteFuncStringWithErr(text, startTag, endTag, func(w io.Writer, tag string) (int, error) {
		name := strings.TrimSpace(tag)
		v, ok := vars[name]
		if !ok {
			return 0, fmt.Errorf("unknown template variable %q", name)
		}
		return w.Write([]byte(v))
	})
}

// Render substitutes vars into text. On failure it logs and returns text
// unrendered.
func Render(text string, vars Vars) string {
	out, err := execute(text, vars)
	if err != nil {
		slog.Error("failed to render template", "error", err)
		return text
	}
	return out
}
