// Package models defines the core data structures for users, sessions
// and the box catalog.
package models

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the layout used to store and display entry dates.
const DateLayout = "2006-01-02"

// DefaultBoxStatus is the status every new individual box starts with.
const DefaultBoxStatus = "available"

var (
	// ErrInvalidCredentials is returned when a username/password pair does not match.
	// Unknown users and wrong passwords are not distinguished.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound is returned when no user has the requested username.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is returned when no active session matches the caller.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserExists is returned when provisioning a username that is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrDuplicateCode is returned when a generated code collides with an existing one.
	ErrDuplicateCode = errors.New("duplicate code")
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("validation failed")
)

// Role is the access level of a user.
type Role string

const (
	// RoleUser is a regular catalog user.
	RoleUser Role = "user"
	// RoleAdmin is an administrator.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user.
	ID int64 `db:"id"`
	// Username is the login name of the user.
	Username string `db:"username"`
	// PasswordHash is the stored password digest (bcrypt, or legacy hex SHA-256).
	PasswordHash string `db:"password_hash"`
	// Role is the access level of the user.
	Role Role `db:"role"`
}

// ActiveSession is the durable record of a logged-in user.
// There is at most one per username.
type ActiveSession struct {
	Username     string    `db:"username"`
	TokenHash    string    `db:"token_hash"`
	LoginTime    time.Time `db:"login_time"`
	LastActivity time.Time `db:"last_activity"`
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Username string
	Role     Role
}

// Letters are the sub-box letters of every triple box, in order.
var Letters = []string{"A", "B", "C"}

// TripleBoxInput carries the fields submitted when registering a triple box.
type TripleBoxInput struct {
	Subject   string
	EntryDate time.Time
	Location  string
	Notes     string
}

// Validate checks that the required fields are not blank.
func (in TripleBoxInput) Validate() error {
	if strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Location) == "" {
		return ErrValidation
	}
	return nil
}

// TripleBox is a logical storage unit made of three individual boxes.
type TripleBox struct {
	ID         int64
	Code       string
	Year       int
	SubjectID  int64
	EntryDate  time.Time
	LocationID int64
	Notes      string
	Boxes      []IndividualBox
}

// IndividualBox is one physical sub-box of a triple box.
type IndividualBox struct {
	ID        int64
	Code      string
	Letter    string
	TripleID  int64
	SubjectID int64
	EntryDate time.Time
	Status    string
}

// BoxListing is one row of the joined catalog listing.
type BoxListing struct {
	// BoxCode is the individual box code, e.g. T-2024-001-A.
	BoxCode string `db:"box_code" json:"box_code"`
	// TripleCode is the parent triple box code.
	TripleCode string `db:"triple_code" json:"triple_code"`
	// Subject is the subject name.
	Subject string `db:"subject" json:"subject"`
	// EntryDate is the entry date as YYYY-MM-DD.
	EntryDate string `db:"entry_date" json:"entry_date"`
	// Status is the box status.
	Status string `db:"status" json:"status"`
}

// ListingHeaders are the column headers of the listing view and the CSV export.
var ListingHeaders = []string{"Box Code", "Triple Box", "Subject", "Entry Date", "Status"}

// Record returns the listing as a row ordered like ListingHeaders.
func (b BoxListing) Record() []string {
	return []string{b.BoxCode, b.TripleCode, b.Subject, b.EntryDate, b.Status}
}
