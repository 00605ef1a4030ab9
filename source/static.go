// Package source provides worklist sources and the refreshing snapshot cache
// that the DICOM services read from.
package source

import (
	"context"
	"slices"
	"time"

	"github.com/caio-sobreiro/dicomworklist/worklist"
)

// Static serves a fixed list of entries.
type Static struct {
	entries []worklist.Entry
}

// NewStatic returns a source that always yields entries.
func NewStatic(entries ...worklist.Entry) *Static {
	return &Static{entries: entries}
}

// Entries returns a copy of the configured entries.
func (s *Static) Entries(_ context.Context) ([]worklist.Entry, error) {
	return slices.Clone(s.entries), nil
}

// Demo serves the demo exams scheduled at the current time, so the default
// source always has work for today.
type Demo struct {
	loc *time.Location
	now func() time.Time
}

// NewDemo returns a source that rebuilds DemoEntries in loc on every read.
// A nil loc means the host's local time zone.
func NewDemo(loc *time.Location) *Demo {
	if loc == nil {
		loc = time.Local
	}
	return &Demo{loc: loc, now: time.Now}
}

func (d *Demo) Entries(_ context.Context) ([]worklist.Entry, error) {
	return DemoEntries(d.now().In(d.loc)), nil
}

// DemoEntries returns three demo exams scheduled at now: two MR knee exams
// for one patient and a CR chest exam for another.
func DemoEntries(now time.Time) []worklist.Entry {
	hilbert := worklist.Entry{
		AccessionNumber:    "AB123",
		DateOfBirth:        time.Date(1975, time.February, 14, 0, 0, 0, 0, now.Location()),
		PatientID:          "100015",
		Surname:            "Test",
		Forename:           "Hilbert",
		Sex:                "M",
		Modality:           "MR",
		ExamDescription:    "mr knee left",
		ExamRoom:           "MR1",
		ProcedureID:        "200001",
		ProcedureStepID:    "200002",
		StudyUID:           "1.2.34.567890.1234567890.1",
		ScheduledAET:       "MRMODALITY",
		ReferringPhysician: "Smith^John^Md",
		ExamDateAndTime:    now,
	}

	right := hilbert
	right.ExamDescription = "mr knee right"
	right.ProcedureID = "200003"
	right.ProcedureStepID = "200004"
	right.StudyUID = "1.2.34.567890.1234567890.2"

	miller := worklist.Entry{
		AccessionNumber:    "AB125",
		DateOfBirth:        time.Date(1984, time.October, 2, 0, 0, 0, 0, now.Location()),
		PatientID:          "100019",
		Surname:            "Miller",
		Forename:           "Albert",
		Sex:                "M",
		Modality:           "CR",
		ExamDescription:    "cp",
		ExamRoom:           "CR2",
		ProcedureID:        "200005",
		ProcedureStepID:    "200006",
		StudyUID:           "1.2.34.567890.1234567890.3",
		ScheduledAET:       "CRMODALITY",
		ReferringPhysician: "Daniels^Jack^Md",
		ExamDateAndTime:    now,
	}

	return []worklist.Entry{hilbert, right, miller}
}
