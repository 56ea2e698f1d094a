package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atinyakov/boxcatalog/internal/middleware"
	"github.com/atinyakov/boxcatalog/internal/models"
	"github.com/atinyakov/boxcatalog/internal/service"
	"go.uber.org/zap"
)

// ExportFilename is the name offered for the CSV download.
const ExportFilename = "box_catalog.csv"

// CatalogService defines the catalog operations used by the HTTP handlers.
type CatalogService interface {
	// NextTripleCode previews the next triple code.
	NextTripleCode(ctx context.Context) (string, int, error)
	// RegisterTripleBox creates a triple box with its three sub-boxes.
	RegisterTripleBox(ctx context.Context, in models.TripleBoxInput) (*models.TripleBox, error)
	// ListBoxes returns the joined box listing.
	ListBoxes(ctx context.Context) ([]models.BoxListing, error)
	// ExportCSV writes the listing as CSV.
	ExportCSV(ctx context.Context, w io.Writer, opts service.ExportOptions) error
}

// CatalogHandler serves the create, list and export views.
type CatalogHandler struct {
	// CatalogService performs the catalog operations.
	CatalogService CatalogService
	// Views renders the pages.
	Views *Views
	// Log records catalog events.
	Log *zap.Logger
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

func (h *CatalogHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *CatalogHandler) page(r *http.Request, title, active string) pageData {
	data := pageData{Title: title, Active: active}
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		data.Identity = &id
	}
	return data
}

// NewBoxForm renders the triple box form with the next code preview and
// today's date preselected.
func (h *CatalogHandler) NewBoxForm(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "Create Triple Box", pageCreate)
	data.Form.EntryDate = h.now().Format(models.DateLayout)
	h.renderCreate(w, r, http.StatusOK, data)
}

// CreateBox registers a triple box from the submitted form. Missing
// subject or location re-renders the form with 422 before any write.
func (h *CatalogHandler) CreateBox(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	form := formValues{
		Subject:   r.PostFormValue("subject"),
		EntryDate: strings.TrimSpace(r.PostFormValue("entry_date")),
		Location:  r.PostFormValue("location"),
		Notes:     r.PostFormValue("notes"),
	}
	data := h.page(r, "Create Triple Box", pageCreate)
	data.Form = form

	in := models.TripleBoxInput{Subject: form.Subject, Location: form.Location, Notes: form.Notes}
	if form.EntryDate == "" {
		in.EntryDate = h.now()
	} else {
		d, err := time.Parse(models.DateLayout, form.EntryDate)
		if err != nil {
			data.Error = "Entry date must be a valid date (YYYY-MM-DD)."
			h.renderCreate(w, r, http.StatusUnprocessableEntity, data)
			return
		}
		in.EntryDate = d
	}
	if err := in.Validate(); err != nil {
		data.Error = "Subject and location are required."
		h.renderCreate(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	triple, err := h.CatalogService.RegisterTripleBox(r.Context(), in)
	if errors.Is(err, models.ErrValidation) {
		data.Error = "Subject and location are required."
		h.renderCreate(w, r, http.StatusUnprocessableEntity, data)
		return
	}
	if err != nil {
		h.Log.Error("register triple box", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data = h.page(r, "Create Triple Box", pageCreate)
	data.Form.EntryDate = h.now().Format(models.DateLayout)
	data.Success = fmt.Sprintf("Triple box %s created with boxes %s.", triple.Code, boxCodes(triple))
	h.renderCreate(w, r, http.StatusOK, data)
}

func (h *CatalogHandler) renderCreate(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	code, _, err := h.CatalogService.NextTripleCode(r.Context())
	if err != nil {
		h.Log.Error("next triple code", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	data.NextCode = code
	h.Views.render(w, pageCreate, status, data)
}

func boxCodes(t *models.TripleBox) string {
	codes := make([]string, 0, len(t.Boxes))
	for _, b := range t.Boxes {
		codes = append(codes, b.Code)
	}
	return strings.Join(codes, ", ")
}

// ListBoxes renders the table of all individual boxes.
func (h *CatalogHandler) ListBoxes(w http.ResponseWriter, r *http.Request) {
	rows, err := h.CatalogService.ListBoxes(r.Context())
	if err != nil {
		h.Log.Error("list boxes", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	data := h.page(r, "Boxes", pageList)
	data.Headers = models.ListingHeaders
	data.Rows = rows
	h.Views.render(w, pageList, http.StatusOK, data)
}

// ExportPage renders the export view with its download links.
func (h *CatalogHandler) ExportPage(w http.ResponseWriter, r *http.Request) {
	h.Views.render(w, pageExport, http.StatusOK, h.page(r, "Export", pageExport))
}

// ExportCSV sends the catalog as a CSV attachment. The query parameter
// bom=1 adds a UTF-8 byte order mark for spreadsheet software.
func (h *CatalogHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	opts := service.ExportOptions{ExcelBOM: r.URL.Query().Get("bom") == "1"}

	var buf bytes.Buffer
	if err := h.CatalogService.ExportCSV(r.Context(), &buf, opts); err != nil {
		h.Log.Error("export csv", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFilename))
	_, _ = buf.WriteTo(w)
}
