// README: Bed inventory model (kinds, statuses) and parsing helpers.
package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"lifeline/internal/types"
)

type Kind string

const (
	KindICU        Kind = "ICU"
	KindVentilator Kind = "VENTILATOR"
	KindGeneral    Kind = "GENERAL"
)

var Kinds = []Kind{KindICU, KindVentilator, KindGeneral}

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusOccupied    Status = "OCCUPIED"
	StatusMaintenance Status = "MAINTENANCE"
)

var Statuses = []Status{StatusAvailable, StatusOccupied, StatusMaintenance}

var (
	ErrNotFound         = errors.New("bed not found")
	ErrFacilityNotFound = errors.New("hospital not found")
	ErrDuplicateNumber  = errors.New("bed number already exists for hospital")
	ErrInvalidKind      = errors.New("invalid bed type")
	ErrInvalidStatus    = errors.New("invalid bed status")
	ErrBadRequest       = errors.New("bad request")
)

type Bed struct {
	ID         types.ID  `json:"id"`
	FacilityID types.ID  `json:"hospital_id"`
	Number     string    `json:"bed_number"`
	Kind       Kind      `json:"bed_type"`
	Status     Status    `json:"bed_status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ParseKind matches s case-insensitively against the known kinds.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// ParseKinds parses every name, failing on the first unknown one.
func ParseKinds(names []string) ([]Kind, error) {
	out := make([]Kind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}
