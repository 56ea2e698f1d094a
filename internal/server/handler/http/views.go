package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/atinyakov/boxcatalog/internal/models"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	pageLogin  = "login"
	pageCreate = "create"
	pageList   = "list"
	pageExport = "export"
)

// formValues echoes submitted form fields back into a page.
type formValues struct {
	Username  string
	Subject   string
	EntryDate string
	Location  string
	Notes     string
}

// pageData is the model handed to every template.
type pageData struct {
	Title    string
	Active   string
	Identity *models.Identity
	Flashes  []string
	Error    string
	Success  string
	Form     formValues
	NextCode string
	Headers  []string
	Rows     []models.BoxListing
}

// Views renders the embedded HTML pages.
type Views struct {
	pages map[string]*template.Template
	log   *zap.Logger
}

// NewViews parses the embedded templates. It fails only if a template is malformed.
func NewViews(log *zap.Logger) (*Views, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := &Views{pages: make(map[string]*template.Template), log: log}
	for _, name := range []string{pageLogin, pageCreate, pageList, pageExport} {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		v.pages[name] = t
	}
	return v, nil
}

// render writes page with the given status. The page is executed into a
// buffer first so a template error still yields a clean 500.
func (v *Views) render(w http.ResponseWriter, page string, status int, data pageData) {
	t, ok := v.pages[page]
	if !ok {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		v.log.Error("failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
