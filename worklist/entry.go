package worklist

import (
	"context"
	"time"

	"github.com/caio-sobreiro/dicomworklist/dicom"
)

// Entry is one scheduled exam as delivered by a worklist source. Entries are
// read-only once handed to the matcher.
type Entry struct {
	AccessionNumber     string    `json:"accession_number"`
	PatientID           string    `json:"patient_id"`
	Surname             string    `json:"surname"`
	Forename            string    `json:"forename"`
	Title               string    `json:"title,omitempty"`
	Sex                 string    `json:"sex,omitempty"`
	DateOfBirth         time.Time `json:"date_of_birth,omitzero"`
	ReferringPhysician  string    `json:"referring_physician,omitempty"`
	PerformingPhysician string    `json:"performing_physician,omitempty"`
	Modality            string    `json:"modality"`
	ExamDateAndTime     time.Time `json:"exam_date_time"`
	ExamRoom            string    `json:"exam_room,omitempty"`
	ExamDescription     string    `json:"exam_description,omitempty"`
	StudyUID            string    `json:"study_uid"`
	ProcedureID         string    `json:"procedure_id"`
	ProcedureStepID     string    `json:"procedure_step_id"`
	HospitalName        string    `json:"hospital_name,omitempty"`
	ScheduledAET        string    `json:"scheduled_aet,omitempty"`
}

// PatientName renders the entry's name as a PN value.
func (e *Entry) PatientName() string {
	return dicom.PersonName{Family: e.Surname, Given: e.Forename, Prefix: e.Title}.String()
}

// Source returns the full current list of worklist entries.
type Source interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// Snapshot provides the latest immutable list of entries. Callers must not
// modify the returned slice.
type Snapshot interface {
	Current() []Entry
}

// FindByProcedureStepID returns the first entry with the given scheduled
// procedure step ID.
func FindByProcedureStepID(entries []Entry, id string) (Entry, bool) {
	for i := range entries {
		if entries[i].ProcedureStepID == id {
			return entries[i], true
		}
	}
	return Entry{}, false
}
