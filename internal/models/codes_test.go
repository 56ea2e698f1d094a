package models

import (
	"testing"
	"time"
)

func TestFormatTripleCode(t *testing.T) {
	cases := []struct {
		year int
		seq  int64
		want string
	}{
		{2024, 1, "T-2024-001"},
		{2024, 42, "T-2024-042"},
		{2025, 999, "T-2025-999"},
		{2026, 1000, "T-2026-1000"},
	}
	for _, tc := range cases {
		if got := FormatTripleCode(tc.year, tc.seq); got != tc.want {
			t.Errorf("FormatTripleCode(%d, %d) = %q; want %q", tc.year, tc.seq, got, tc.want)
		}
	}
}

func TestParseTripleSeq(t *testing.T) {
	seq, err := ParseTripleSeq("T-2023-017")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq != 17 {
		t.Errorf("seq = %d; want 17", seq)
	}

	for _, bad := range []string{"", "T-2024", "X-2024-001", "T-2024-abc", "T-2024-001-A"} {
		if _, err := ParseTripleSeq(bad); err == nil {
			t.Errorf("ParseTripleSeq(%q) returned nil error", bad)
		}
	}
}

func TestBoxCode(t *testing.T) {
	if got := BoxCode("T-2024-001", "B"); got != "T-2024-001-B" {
		t.Errorf("BoxCode = %q", got)
	}
}

func TestTripleBoxInputValidate(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		in      TripleBoxInput
		wantErr bool
	}{
		{"ok", TripleBoxInput{Subject: "Contracts", Location: "Shelf 3", EntryDate: date}, false},
		{"blank subject", TripleBoxInput{Subject: "   ", Location: "Shelf 3", EntryDate: date}, true},
		{"empty location", TripleBoxInput{Subject: "Contracts", EntryDate: date}, true},
		{"notes optional", TripleBoxInput{Subject: "a", Location: "b", Notes: ""}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v; wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleUser.Valid() || !RoleAdmin.Valid() {
		t.Error("known roles must be valid")
	}
	if Role("root").Valid() {
		t.Error("unknown role reported valid")
	}
}
