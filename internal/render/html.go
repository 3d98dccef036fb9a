package render

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// HTMLRenderer renders the schedule page. Session cards are <details>
// elements, so click/tap toggles the expanded description and taglines
// without script.
type HTMLRenderer struct {
	tmpl *template.Template
}

var funcMap = template.FuncMap{
	"initials": func(name string) string {
		var b strings.Builder
		n := 0
		for _, f := range strings.Fields(name) {
			r, _ := utf8.DecodeRuneInString(f)
			b.WriteRune(unicode.ToUpper(r))
			if n++; n == 2 {
				break
			}
		}
		return b.String()
	},
}

// NewHTMLRenderer parses the embedded templates.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	t, err := template.New("page").Funcs(funcMap).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &HTMLRenderer{tmpl: t}, nil
}

func (r *HTMLRenderer) Render(w io.Writer, p Page) error {
	return r.tmpl.ExecuteTemplate(w, "page.html.tmpl", p)
}

func (r *HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }

// JSONRenderer emits the render tree as JSON for API clients.
type JSONRenderer struct{}

func (JSONRenderer) Render(w io.Writer, p Page) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func (JSONRenderer) ContentType() string { return "application/json; charset=utf-8" }
