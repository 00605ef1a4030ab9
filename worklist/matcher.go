package worklist

import (
	"iter"
	"time"

	"github.com/caio-sobreiro/dicomworklist/dicom"
)

// Result is one matched entry projected onto the requested attributes.
type Result struct {
	Values map[Attribute]string
	// Step is present only when the query carried a step sub-query.
	Step *StepResult
}

// StepResult is the projected Scheduled Procedure Step Sequence item.
type StepResult struct {
	Values map[StepAttribute]string
}

// Matcher filters worklist entries. The zero value interprets dates in the
// local time zone.
type Matcher struct {
	Location *time.Location
}

// Filter matches candidates with the default Matcher.
func Filter(q *Query, candidates []Entry) iter.Seq[Result] {
	return Matcher{}.Filter(q, candidates)
}

// Filter returns the entries that satisfy every filter in q, in candidate
// order, each projected onto the attributes q requested. Results are produced
// while the caller ranges; stopping the range stops matching. A nil query
// matches everything and requests nothing.
func (m Matcher) Filter(q *Query, candidates []Entry) iter.Seq[Result] {
	match := m.compile(q)
	return func(yield func(Result) bool) {
		for i := range candidates {
			entry := &candidates[i]
			if !match(entry) {
				continue
			}
			if !yield(project(q, entry)) {
				return
			}
		}
	}
}

// Match reports whether e satisfies every filter in q.
func (m Matcher) Match(q *Query, e *Entry) bool {
	return m.compile(q)(e)
}

// DateFilter returns the scheduled start range a query asks for. The DT key
// takes precedence over the DA key. A malformed value is reported as an error;
// Filter treats it as no constraint.
func (m Matcher) DateFilter(q *Query) (DateRange, error) {
	if q == nil || q.Step == nil {
		return DateRange{}, nil
	}
	value := q.Step.filter(ScheduledProcedureStepStartDateTime)
	if value == "" {
		value = q.Step.filter(ScheduledProcedureStepStartDate)
	}
	return ParseDateRange(value, m.Location)
}

type predicate func(e *Entry) bool

func (m Matcher) compile(q *Query) predicate {
	var preds []predicate

	if id := q.filter(PatientID); id != "" {
		preds = append(preds, func(e *Entry) bool { return e.PatientID == id })
	}
	if name := compileNameFilter(q.filter(PatientName)); name != nil {
		preds = append(preds, func(e *Entry) bool { return name(e.Surname, e.Forename) })
	}

	if q != nil && q.Step != nil {
		exact := []struct {
			attr  StepAttribute
			field func(e *Entry) string
		}{
			{ScheduledStationAETitle, func(e *Entry) string { return e.ScheduledAET }},
			{ScheduledPerformingPhysicianName, func(e *Entry) string { return e.PerformingPhysician }},
			{Modality, func(e *Entry) string { return e.Modality }},
			{ScheduledProcedureStepLocation, func(e *Entry) string { return e.ExamRoom }},
			{ScheduledProcedureStepDescription, func(e *Entry) string { return e.ExamDescription }},
		}
		for _, f := range exact {
			want := q.Step.filter(f.attr)
			if want == "" {
				continue
			}
			field := f.field
			preds = append(preds, func(e *Entry) bool { return field(e) == want })
		}

		if r, err := m.DateFilter(q); err == nil && !r.Unbounded() {
			preds = append(preds, func(e *Entry) bool { return r.Contains(e.ExamDateAndTime) })
		}
	}

	return func(e *Entry) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

func project(q *Query, e *Entry) Result {
	var r Result
	if q == nil {
		r.Values = map[Attribute]string{}
		return r
	}
	r.Values = make(map[Attribute]string, len(q.Values))
	for a := range q.Values {
		r.Values[a] = entryValue(e, a)
	}
	if q.Step != nil {
		r.Step = &StepResult{Values: make(map[StepAttribute]string, len(q.Step.Values))}
		for a := range q.Step.Values {
			r.Step.Values[a] = stepValue(e, a)
		}
	}
	return r
}

func entryValue(e *Entry, a Attribute) string {
	switch a {
	case AccessionNumber:
		return e.AccessionNumber
	case InstitutionName:
		return e.HospitalName
	case ReferringPhysicianName, RequestingPhysician:
		return e.ReferringPhysician
	case PatientName:
		return e.PatientName()
	case PatientID:
		return e.PatientID
	case PatientBirthDate:
		return dicom.FormatDate(e.DateOfBirth)
	case PatientSex:
		return e.Sex
	case StudyInstanceUID:
		return e.StudyUID
	case RequestedProcedureDescription:
		return e.ExamDescription
	case RequestedProcedureID:
		return e.ProcedureID
	}
	return ""
}

func stepValue(e *Entry, a StepAttribute) string {
	switch a {
	case ScheduledStationAETitle:
		return e.ScheduledAET
	case ScheduledProcedureStepStartDate:
		return dicom.FormatDate(e.ExamDateAndTime)
	case ScheduledProcedureStepStartTime:
		return dicom.FormatTime(e.ExamDateAndTime)
	case ScheduledProcedureStepStartDateTime:
		return dicom.FormatDateTime(e.ExamDateAndTime)
	case Modality:
		return e.Modality
	case ScheduledPerformingPhysicianName:
		return e.PerformingPhysician
	case ScheduledProcedureStepDescription:
		return e.ExamDescription
	case ScheduledProcedureStepID:
		return e.ProcedureStepID
	case ScheduledStationName, ScheduledProcedureStepLocation:
		return e.ExamRoom
	}
	return ""
}
