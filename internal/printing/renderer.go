package printing

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer tiene un set de templates por documento; todos comparten "layout".
type Renderer struct {
	submission *template.Template
	violation  *template.Template
}

func NewRenderer() (*Renderer, error) {
	sub, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/submission.html")
	if err != nil {
		return nil, err
	}
	viol, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/violation.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{submission: sub, violation: viol}, nil
}

func (r *Renderer) Submission(w io.Writer, doc SubmissionDoc) error {
	return r.submission.ExecuteTemplate(w, "layout", doc)
}

func (r *Renderer) Violation(w io.Writer, doc ViolationDoc) error {
	return r.violation.ExecuteTemplate(w, "layout", doc)
}
