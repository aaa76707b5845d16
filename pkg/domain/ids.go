// Package domain defines the typed identifiers shared across storegate.
// IDs are distinct uuid-backed types so a constraint id can never be passed
// where, say, a category id is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "storegate/pkg/domain-errors"
)

// ConstraintID identifies a shipping or payment constraint.
type ConstraintID uuid.UUID

func (id ConstraintID) String() string { return uuid.UUID(id).String() }

func (id ConstraintID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseConstraintID parses and validates a constraint id from its string form.
// Empty strings, malformed values, and the nil UUID are rejected at the trust
// boundary so stores never see garbage ids.
func ParseConstraintID(s string) (ConstraintID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return ConstraintID{}, err
	}
	return ConstraintID(parsed), nil
}

// maxIDLength bounds raw id input before parsing. A canonical UUID is 36
// characters; anything much longer is an attack vector, not a typo.
const maxIDLength = 64

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is too long")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}
