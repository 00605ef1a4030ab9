package worklist

import "strings"

// Query is a decoded worklist request. Every key present in Values was
// requested and will be echoed; a non-empty value is also a filter.
type Query struct {
	Values map[Attribute]string
	// Step is nil when the request carried no Scheduled Procedure Step Sequence.
	Step *StepQuery
}

// StepQuery holds the requested scheduled procedure step keys.
type StepQuery struct {
	Values map[StepAttribute]string
}

// NewQuery returns an empty query that requests nothing and matches everything.
func NewQuery() *Query {
	return &Query{Values: make(map[Attribute]string)}
}

// NewStepQuery returns an empty step sub-query.
func NewStepQuery() *StepQuery {
	return &StepQuery{Values: make(map[StepAttribute]string)}
}

// Set requests a with the given filter ("" for return-only).
func (q *Query) Set(a Attribute, filter string) *Query {
	q.Values[a] = filter
	return q
}

// Has reports whether a was requested.
func (q *Query) Has(a Attribute) bool {
	_, ok := q.Values[a]
	return ok
}

// WithStep attaches a step sub-query.
func (q *Query) WithStep(s *StepQuery) *Query {
	q.Step = s
	return q
}

// Set requests a with the given filter ("" for return-only).
func (s *StepQuery) Set(a StepAttribute, filter string) *StepQuery {
	s.Values[a] = filter
	return s
}

// Has reports whether a was requested.
func (s *StepQuery) Has(a StepAttribute) bool {
	_, ok := s.Values[a]
	return ok
}

func (q *Query) filter(a Attribute) string {
	if q == nil {
		return ""
	}
	return matchValue(q.Values[a])
}

func (s *StepQuery) filter(a StepAttribute) string {
	if s == nil {
		return ""
	}
	return matchValue(s.Values[a])
}

// matchValue normalizes a filter; a lone "*" is universal matching.
func matchValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "*" {
		return ""
	}
	return v
}
