package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTripleCode builds a triple box code such as T-2024-001.
func FormatTripleCode(year int, seq int64) string {
	return fmt.Sprintf("T-%d-%03d", year, seq)
}

// ParseTripleSeq extracts the sequence number from a triple box code.
// The year part is ignored: sequence numbers are global.
func ParseTripleSeq(code string) (int64, error) {
	parts := strings.Split(code, "-")
	if len(parts) != 3 || parts[0] != "T" {
		return 0, fmt.Errorf("malformed triple code %q", code)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed triple code %q: %w", code, err)
	}
	return seq, nil
}

// BoxCode builds the code of an individual box from its parent code and letter.
func BoxCode(tripleCode, letter string) string {
	return tripleCode + "-" + letter
}
