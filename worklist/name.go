package worklist

import (
	"regexp"
	"strings"

	"github.com/caio-sobreiro/dicomworklist/dicom"
)

// nameMatcher reports whether an entry's name satisfies a PatientName filter.
type nameMatcher func(surname, forename string) bool

// compileNameFilter builds the PatientName predicate. It returns nil when the
// filter places no constraint.
//
// With a '*' anywhere in the filter the family and given components are
// matched as case-insensitive wildcards and either one matching is enough.
// Components that are empty or only '*' take no part in that OR. Without a
// wildcard both components must be equal.
func compileNameFilter(filter string) nameMatcher {
	filter = matchValue(filter)
	if filter == "" {
		return nil
	}

	pn := dicom.ParsePersonName(filter)
	if !strings.Contains(filter, "*") {
		return func(surname, forename string) bool {
			return surname == pn.Family && forename == pn.Given
		}
	}

	surnameRe := wildcardRegexp(pn.Family)
	forenameRe := wildcardRegexp(pn.Given)
	if surnameRe == nil && forenameRe == nil {
		return nil
	}
	return func(surname, forename string) bool {
		return (surnameRe != nil && surnameRe.MatchString(surname)) ||
			(forenameRe != nil && forenameRe.MatchString(forename))
	}
}

// wildcardRegexp converts a '*' pattern into an anchored case-insensitive
// regexp, or nil when the pattern matches anything.
func wildcardRegexp(pattern string) *regexp.Regexp {
	if strings.Trim(pattern, "*") == "" {
		return nil
	}
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("(?i)^" + strings.Join(parts, ".*") + "$")
}
