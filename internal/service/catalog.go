package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atinyakov/boxcatalog/internal/models"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxRegisterAttempts bounds how often a registration is retried after
// a code collision.
const maxRegisterAttempts = 3

// CatalogRepository defines the persistence operations needed by the CatalogService.
type CatalogRepository interface {
	// PeekNextSeq returns the next sequence number without consuming it.
	PeekNextSeq(ctx context.Context) (int64, error)
	// EnsureSubject finds or creates a subject by exact name.
	EnsureSubject(ctx context.Context, name string) (int64, error)
	// CreateLocation always inserts a new location.
	CreateLocation(ctx context.Context, label string) (int64, error)
	// CreateTripleBox atomically registers a triple box and its three boxes.
	CreateTripleBox(ctx context.Context, in models.TripleBoxInput, year int) (*models.TripleBox, error)
	// ListBoxes returns the joined listing ordered by triple code and letter.
	ListBoxes(ctx context.Context) ([]models.BoxListing, error)
	// SyncSequence raises the sequence counter to the highest existing code.
	SyncSequence(ctx context.Context) (int64, error)
}

// ExportOptions controls the CSV export format.
type ExportOptions struct {
	// ExcelBOM prefixes the output with a UTF-8 byte order mark.
	ExcelBOM bool
}

// CatalogService implements triple box registration, listing and export.
type CatalogService struct {
	repo CatalogRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewCatalogService constructs a CatalogService with the provided CatalogRepository.
func NewCatalogService(repo CatalogRepository, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{repo: repo, log: log, now: time.Now}
}

// NextTripleCode previews the code the next registration will receive
// along with its year. Nothing is consumed.
func (s *CatalogService) NextTripleCode(ctx context.Context) (string, int, error) {
	seq, err := s.repo.PeekNextSeq(ctx)
	if err != nil {
		return "", 0, err
	}
	year := s.now().Year()
	return models.FormatTripleCode(year, seq), year, nil
}

// EnsureSubject returns the id of the subject called name, creating it on first use.
func (s *CatalogService) EnsureSubject(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("subject is required: %w", models.ErrValidation)
	}
	return s.repo.EnsureSubject(ctx, name)
}

// CreateLocation inserts a new location with the given label.
func (s *CatalogService) CreateLocation(ctx context.Context, label string) (int64, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, fmt.Errorf("location is required: %w", models.ErrValidation)
	}
	return s.repo.CreateLocation(ctx, label)
}

// RegisterTripleBox creates a triple box with its A, B and C boxes.
// When the allocated code is already taken the sequence is resynchronised
// and the registration retried.
func (s *CatalogService) RegisterTripleBox(ctx context.Context, in models.TripleBoxInput) (*models.TripleBox, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in.Subject = strings.TrimSpace(in.Subject)
	in.Location = strings.TrimSpace(in.Location)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.EntryDate.IsZero() {
		in.EntryDate = s.now()
	}

	year := s.now().Year()
	for attempt := 1; ; attempt++ {
		triple, err := s.repo.CreateTripleBox(ctx, in, year)
		if err == nil {
			s.log.Info("registered triple box",
				zap.String("code", triple.Code),
				zap.String("subject", in.Subject),
			)
			return triple, nil
		}
		if !errors.Is(err, models.ErrDuplicateCode) || attempt >= maxRegisterAttempts {
			return nil, err
		}

		s.log.Warn("triple code collision, resyncing sequence",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if _, err := s.repo.SyncSequence(ctx); err != nil {
			return nil, err
		}
	}
}

// ListBoxes returns every individual box with its triple code and subject.
func (s *CatalogService) ListBoxes(ctx context.Context) ([]models.BoxListing, error) {
	return s.repo.ListBoxes(ctx)
}

// ExportCSV writes the box listing to w as CSV with a header row.
func (s *CatalogService) ExportCSV(ctx context.Context, w io.Writer, opts ExportOptions) error {
	rows, err := s.repo.ListBoxes(ctx)
	if err != nil {
		return err
	}

	out := w
	var bom *transform.Writer
	if opts.ExcelBOM {
		bom = transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
		out = bom
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(models.ListingHeaders); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if bom != nil {
		return bom.Close()
	}
	return nil
}

// SyncSequence aligns the sequence counter with existing triple codes.
func (s *CatalogService) SyncSequence(ctx context.Context) error {
	last, err := s.repo.SyncSequence(ctx)
	if err != nil {
		return err
	}
	s.log.Info("triple sequence synchronised", zap.Int64("last_no", last))
	return nil
}
