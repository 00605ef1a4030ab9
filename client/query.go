package client

import (
	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/worklist"
)

// WorklistFilter narrows a worklist query. Empty fields match anything.
type WorklistFilter struct {
	StationAETitle string
	Modality       string
	// Date is a DA value or range such as "20240101-20240107".
	Date        string
	PatientName string
	PatientID   string
}

// NewWorklistQuery builds a C-FIND identifier that requests every worklist
// attribute, including a full Scheduled Procedure Step item, and applies f.
func NewWorklistQuery(f WorklistFilter) *dicom.Dataset {
	q := worklist.NewQuery()
	for _, a := range worklist.Attributes() {
		q.Set(a, "")
	}
	q.Set(worklist.PatientName, f.PatientName)
	q.Set(worklist.PatientID, f.PatientID)

	step := worklist.NewStepQuery()
	for _, a := range worklist.StepAttributes() {
		step.Set(a, "")
	}
	step.Set(worklist.ScheduledStationAETitle, f.StationAETitle)
	step.Set(worklist.Modality, f.Modality)
	step.Set(worklist.ScheduledProcedureStepStartDate, f.Date)

	return q.WithStep(step).Dataset()
}
