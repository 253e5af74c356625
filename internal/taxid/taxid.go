/*
Package taxid - Chilean tax identifier (RUT) parsing and canonical formatting.

The canonical form used throughout this module is undotted: "<digits>-<dv>"
(e.g. "76123456-K"), never the dotted "XX.XXX.XXX-X" display form. Validation
mirrors the SII portal's own lax acceptance: 7-8 numeric digits plus a check
digit of 0-9 or K, with no modulo-11 verification — the portal itself is the
source of truth for whether a RUT is actually registered.
*/
package taxid

import (
	"strings"

	fizkoerrors "fizko/internal/errors"
)

// ID is a parsed, canonical Chilean tax identifier.
type ID struct {
	Digits string // numeric body, no leading zeros stripped
	DV     string // single check-digit character, uppercase, "0"-"9" or "K"
}

// String returns the canonical undotted form "<digits>-<dv>".
func (id ID) String() string {
	if id.Digits == "" {
		return ""
	}
	return id.Digits + "-" + id.DV
}

// Parse accepts a RUT in any common shape (dotted, undotted, with or
// without surrounding whitespace) and returns its canonical ID.
func Parse(raw string) (ID, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, ".", "")

	parts := strings.Split(cleaned, "-")
	if len(parts) != 2 {
		return ID{}, fizkoerrors.ErrValidation.WithMessage("tax id must contain exactly one '-': " + raw)
	}

	digits, dv := parts[0], parts[1]
	id := ID{Digits: digits, DV: dv}
	if !id.valid() {
		return ID{}, fizkoerrors.ErrValidation.WithMessage("invalid tax id format: " + raw)
	}
	return id, nil
}

// Valid reports whether raw parses to a structurally valid tax id.
func Valid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

func (id ID) valid() bool {
	if len(id.Digits) < 7 || len(id.Digits) > 8 {
		return false
	}
	for _, r := range id.Digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	if len(id.DV) != 1 {
		return false
	}
	c := id.DV[0]
	return (c >= '0' && c <= '9') || c == 'K'
}
