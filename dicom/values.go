package dicom

import (
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Layouts for the DICOM date and time VRs.
const (
	DateLayout     = "20060102"
	TimeLayout     = "150405"
	DateTimeLayout = "20060102150405"
)

// PersonName is the component form of a PN value.
type PersonName struct {
	Family string
	Given  string
	Middle string
	Prefix string
	Suffix string
}

// ParsePersonName splits a PN value on '^'. Only the alphabetic group (before
// any '=') is considered.
func ParsePersonName(value string) PersonName {
	if i := strings.IndexByte(value, '='); i >= 0 {
		value = value[:i]
	}
	parts := strings.SplitN(strings.TrimSpace(value), "^", 5)
	var pn PersonName
	fields := []*string{&pn.Family, &pn.Given, &pn.Middle, &pn.Prefix, &pn.Suffix}
	for i, part := range parts {
		*fields[i] = strings.TrimSpace(part)
	}
	return pn
}

// String renders the name with trailing empty components removed.
func (pn PersonName) String() string {
	return strings.TrimRight(strings.Join([]string{pn.Family, pn.Given, pn.Middle, pn.Prefix, pn.Suffix}, "^"), "^")
}

// FormatDate renders t as DA, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// FormatTime renders t as TM, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// FormatDateTime renders t as DT, or "" for the zero time.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateTimeLayout)
}

// NewUID returns a UID under the 2.25 root derived from a random UUID.
func NewUID() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	return "2.25." + n.String()
}
