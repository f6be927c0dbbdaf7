package accounts

import (
	"strconv"
	"strings"
)

// StatusOption pairs a status value with its display label
type StatusOption struct {
	Value Status `json:"value"`
	Label string `json:"label"`
}

// StatusName returns the label for status. Anything that is not
// deleted or inactive is reported as "Active".
func StatusName(status Status) string {
	switch status {
	case StatusDeleted:
		return "Deleted"
	case StatusNotActive:
		return "Inactive"
	default:
		return "Active"
	}
}

// StatusList returns the known statuses in display order
func StatusList() []StatusOption {
	return []StatusOption{
		{Value: StatusActive, Label: "Active"},
		{Value: StatusNotActive, Label: "Inactive"},
		{Value: StatusDeleted, Label: "Deleted"},
	}
}

// IsValid checks status is one of the defined values
func (s Status) IsValid() bool {
	switch s {
	case StatusDeleted, StatusNotActive, StatusActive:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (s Status) String() string {
	return StatusName(s)
}

// ParseStatus accepts a status label (case insensitive) or its number
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, opt := range StatusList() {
		if strings.EqualFold(s, opt.Label) {
			return opt.Value, true
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil || !Status(n).IsValid() {
		return 0, false
	}
	return Status(n), true
}
