package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/boxcatalog/internal/models"
	"github.com/jmoiron/sqlx"
)

// tripleSequence is the row of triple_sequence that numbers triple boxes.
const tripleSequence = "triple"

// CatalogRepository implements persistence for subjects, locations,
// triple boxes and their individual boxes.
type CatalogRepository struct {
	// DB is the database handle for executing queries.
	DB *sqlx.DB
}

// NewCatalogRepository creates a new CatalogRepository with the given database connection.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

// PeekNextSeq returns the sequence number the next registration will
// receive, without consuming it.
func (r *CatalogRepository) PeekNextSeq(ctx context.Context) (int64, error) {
	var last int64
	err := r.DB.GetContext(ctx, &last,
		r.DB.Rebind(`SELECT last_no FROM triple_sequence WHERE name = ?`),
		tripleSequence,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("PeekNextSeq: %w", err)
	}
	return last + 1, nil
}

// EnsureSubject returns the id of the subject called name, creating it
// if it does not exist.
func (r *CatalogRepository) EnsureSubject(ctx context.Context, name string) (int64, error) {
	return ensureSubject(ctx, r.DB, name)
}

// CreateLocation inserts a new location and returns its id.
// Labels are not deduplicated.
func (r *CatalogRepository) CreateLocation(ctx context.Context, label string) (int64, error) {
	return createLocation(ctx, r.DB, label)
}

// CreateTripleBox registers a triple box and its three individual boxes in
// a single transaction. The code is allocated from triple_sequence inside
// the same transaction, so a failure at any step leaves nothing behind,
// the consumed number included. A code collision yields models.ErrDuplicateCode.
func (r *CatalogRepository) CreateTripleBox(ctx context.Context, in models.TripleBoxInput, year int) (*models.TripleBox, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateTripleBox: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("CreateTripleBox: %w", err)
	}

	triple := &models.TripleBox{
		Code:      models.FormatTripleCode(year, seq),
		Year:      year,
		EntryDate: in.EntryDate,
		Notes:     in.Notes,
	}

	if triple.SubjectID, err = ensureSubject(ctx, tx, in.Subject); err != nil {
		return nil, fmt.Errorf("CreateTripleBox: %w", err)
	}
	if triple.LocationID, err = createLocation(ctx, tx, in.Location); err != nil {
		return nil, fmt.Errorf("CreateTripleBox: %w", err)
	}

	entry := in.EntryDate.Format(models.DateLayout)

	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO triple_boxes (code, year, subject_id, entry_date, location_id, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), triple.Code, year, triple.SubjectID, entry, triple.LocationID, in.Notes).Scan(&triple.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("CreateTripleBox: %s: %w", triple.Code, models.ErrDuplicateCode)
	}
	if err != nil {
		return nil, fmt.Errorf("CreateTripleBox: insert triple box: %w", err)
	}

	insertBox := tx.Rebind(`
		INSERT INTO individual_boxes (code, letter, triple_id, subject_id, entry_date, status)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	for _, letter := range models.Letters {
		box := models.IndividualBox{
			Code:      models.BoxCode(triple.Code, letter),
			Letter:    letter,
			TripleID:  triple.ID,
			SubjectID: triple.SubjectID,
			EntryDate: in.EntryDate,
			Status:    models.DefaultBoxStatus,
		}
		err = tx.QueryRowxContext(ctx, insertBox,
			box.Code, box.Letter, box.TripleID, box.SubjectID, entry, box.Status,
		).Scan(&box.ID)
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("CreateTripleBox: %s: %w", box.Code, models.ErrDuplicateCode)
		}
		if err != nil {
			return nil, fmt.Errorf("CreateTripleBox: insert box %s: %w", box.Code, err)
		}
		triple.Boxes = append(triple.Boxes, box)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CreateTripleBox: commit: %w", err)
	}
	return triple, nil
}

// ListBoxes returns every individual box joined with its triple box and
// subject, ordered by triple code then letter.
func (r *CatalogRepository) ListBoxes(ctx context.Context) ([]models.BoxListing, error) {
	rows := []models.BoxListing{}
	err := r.DB.SelectContext(ctx, &rows, `
		SELECT c.code AS box_code,
		       t.code AS triple_code,
		       s.name AS subject,
		       c.entry_date AS entry_date,
		       c.status AS status
		FROM individual_boxes c
		JOIN triple_boxes t ON c.triple_id = t.id
		JOIN subjects s ON c.subject_id = s.id
		ORDER BY t.code, c.letter
	`)
	if err != nil {
		return nil, fmt.Errorf("ListBoxes: %w", err)
	}
	return rows, nil
}

// SyncSequence raises triple_sequence to the highest sequence number found
// among existing triple box codes. It never lowers the counter and returns
// the resulting last number.
func (r *CatalogRepository) SyncSequence(ctx context.Context) (int64, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("SyncSequence: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var codes []string
	if err := tx.SelectContext(ctx, &codes, `SELECT code FROM triple_boxes`); err != nil {
		return 0, fmt.Errorf("SyncSequence: select codes: %w", err)
	}

	var highest int64
	for _, code := range codes {
		seq, err := models.ParseTripleSeq(code)
		if err != nil {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO triple_sequence (name, last_no) VALUES (?, 0)
		ON CONFLICT (name) DO NOTHING
	`), tripleSequence); err != nil {
		return 0, fmt.Errorf("SyncSequence: seed: %w", err)
	}

	var last int64
	err = tx.GetContext(ctx, &last, tx.Rebind(`
		UPDATE triple_sequence
		SET last_no = CASE WHEN last_no < ? THEN ? ELSE last_no END
		WHERE name = ?
		RETURNING last_no
	`), highest, highest, tripleSequence)
	if err != nil {
		return 0, fmt.Errorf("SyncSequence: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("SyncSequence: commit: %w", err)
	}
	return last, nil
}

// nextSeq consumes and returns the next triple sequence number.
func nextSeq(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	var seq int64
	err := sqlx.GetContext(ctx, q, &seq, q.Rebind(`
		UPDATE triple_sequence SET last_no = last_no + 1
		WHERE name = ?
		RETURNING last_no
	`), tripleSequence)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sequence %q not found", tripleSequence)
	}
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

func ensureSubject(ctx context.Context, q sqlx.ExtContext, name string) (int64, error) {
	if _, err := q.ExecContext(ctx,
		q.Rebind(`INSERT INTO subjects (name) VALUES (?) ON CONFLICT (name) DO NOTHING`),
		name,
	); err != nil {
		return 0, fmt.Errorf("insert subject: %w", err)
	}
	var id int64
	if err := sqlx.GetContext(ctx, q, &id,
		q.Rebind(`SELECT id FROM subjects WHERE name = ?`),
		name,
	); err != nil {
		return 0, fmt.Errorf("select subject: %w", err)
	}
	return id, nil
}

func createLocation(ctx context.Context, q sqlx.ExtContext, label string) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, q, &id,
		q.Rebind(`INSERT INTO locations (label) VALUES (?) RETURNING id`),
		label,
	); err != nil {
		return 0, fmt.Errorf("insert location: %w", err)
	}
	return id, nil
}
