package client

import (
	"fmt"
	"time"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/mpps"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// CreateProcedureStep sends an N-CREATE for a new performed procedure step and
// returns the instance UID the SCP acknowledged. An empty instanceUID lets
// the SCP assign one.
func (a *Association) CreateProcedureStep(instanceUID string, data *dicom.Dataset) (string, error) {
	messageID := a.messageID()
	command := &types.Message{
		CommandField:           types.NCreateRQ,
		MessageID:              messageID,
		AffectedSOPClassUID:    types.ModalityPerformedProcedureStep,
		AffectedSOPInstanceUID: instanceUID,
	}
	if err := a.sendDIMSEMessage(types.ModalityPerformedProcedureStep, command, data); err != nil {
		return "", fmt.Errorf("failed to send N-CREATE request: %w", err)
	}

	msg, _, err := a.receiveDIMSEMessage()
	if err != nil {
		return "", err
	}
	if err := expectResponse(types.NCreateRQ, messageID, msg); err != nil {
		return "", err
	}
	if msg.Status != types.StatusSuccess {
		return "", dicomerrors.NewDIMSEError("N-CREATE", msg.Status, msg.ErrorComment)
	}

	if msg.AffectedSOPInstanceUID != "" {
		instanceUID = msg.AffectedSOPInstanceUID
	}
	return instanceUID, nil
}

// SetProcedureStep sends an N-SET updating an existing performed procedure step.
func (a *Association) SetProcedureStep(instanceUID string, data *dicom.Dataset) error {
	messageID := a.messageID()
	command := &types.Message{
		CommandField:            types.NSetRQ,
		MessageID:               messageID,
		RequestedSOPClassUID:    types.ModalityPerformedProcedureStep,
		RequestedSOPInstanceUID: instanceUID,
	}
	if err := a.sendDIMSEMessage(types.ModalityPerformedProcedureStep, command, data); err != nil {
		return fmt.Errorf("failed to send N-SET request: %w", err)
	}

	msg, _, err := a.receiveDIMSEMessage()
	if err != nil {
		return err
	}
	if err := expectResponse(types.NSetRQ, messageID, msg); err != nil {
		return err
	}
	if msg.Status != types.StatusSuccess {
		return dicomerrors.NewDIMSEError("N-SET", msg.Status, msg.ErrorComment)
	}
	return nil
}

// Station identifies the modality performing a procedure step.
type Station struct {
	AETitle  string
	Name     string
	Location string
}

// InProgressDataset builds the N-CREATE attributes that start the first
// scheduled step of a worklist item returned by FindWorklist.
func InProgressDataset(item *dicom.Dataset, station Station, start time.Time) *dicom.Dataset {
	step := item.FirstItem(dicom.ScheduledProcedureStepSequence)
	if step == nil {
		step = dicom.NewDataset()
	}
	stepID := step.GetString(dicom.ScheduledProcedureStepID)

	studyUID := item.GetString(dicom.StudyInstanceUID)
	if studyUID == "" {
		studyUID = dicom.NewUID()
	}

	attrs := dicom.NewDataset()
	attrs.AddString(dicom.StudyInstanceUID, studyUID)
	attrs.AddSequence(dicom.ReferencedStudySequence)
	attrs.AddString(dicom.AccessionNumber, item.GetString(dicom.AccessionNumber))
	attrs.AddString(dicom.RequestedProcedureID, item.GetString(dicom.RequestedProcedureID))
	attrs.AddString(dicom.RequestedProcedureDescription, item.GetString(dicom.RequestedProcedureDescription))
	attrs.AddString(dicom.ScheduledProcedureStepID, stepID)
	attrs.AddString(dicom.ScheduledProcedureStepDescription, step.GetString(dicom.ScheduledProcedureStepDescription))
	attrs.AddSequence(dicom.ScheduledProtocolCodeSequence)

	ds := dicom.NewDataset()
	ds.AddSequence(dicom.ScheduledStepAttributesSequence, attrs)
	ds.AddSequence(dicom.ProcedureCodeSequence)
	ds.AddSequence(dicom.PerformedSeriesSequence)
	ds.AddString(dicom.PatientName, item.GetString(dicom.PatientName))
	ds.AddString(dicom.PatientID, item.GetString(dicom.PatientID))
	ds.AddString(dicom.PatientBirthDate, item.GetString(dicom.PatientBirthDate))
	ds.AddString(dicom.PatientSex, item.GetString(dicom.PatientSex))
	ds.AddSequence(dicom.ReferencedPatientSeq)
	ds.AddString(dicom.PerformedProcedureStepID, stepID)
	ds.AddString(dicom.PerformedStationAETitle, station.AETitle)
	ds.AddString(dicom.PerformedStationName, station.Name)
	ds.AddString(dicom.PerformedLocation, station.Location)
	ds.AddString(dicom.PerformedProcedureStepStartDate, dicom.FormatDate(start))
	ds.AddString(dicom.PerformedProcedureStepStartTime, dicom.FormatTime(start))
	ds.AddString(dicom.PerformedProcedureStepStatus, string(mpps.InProgress))
	ds.AddString(dicom.PerformedProcedureStepDescription, stepID)
	ds.AddString(dicom.PerformedProcedureTypeDescription, "")
	ds.AddString(dicom.PerformedProcedureStepEndDate, "")
	ds.AddString(dicom.PerformedProcedureStepEndTime, "")
	ds.AddString(dicom.Modality, step.GetString(dicom.Modality))
	ds.AddString(dicom.StudyID, item.GetString(dicom.StudyID))
	ds.AddSequence(dicom.PerformedProtocolCodeSequence)
	return ds
}

// PerformedSeries describes one series acquired during a procedure step.
type PerformedSeries struct {
	SeriesInstanceUID string
	Description       string
	ProtocolName      string
	RetrieveAETitle   string
	Images            []PerformedImage
}

// PerformedImage references one stored instance.
type PerformedImage struct {
	SOPClassUID    string
	SOPInstanceUID string
}

// CompletedDataset builds the N-SET attributes that complete a procedure step.
func CompletedDataset(item *dicom.Dataset, end time.Time, doseComment string, series ...PerformedSeries) *dicom.Dataset {
	var stepID string
	if step := item.FirstItem(dicom.ScheduledProcedureStepSequence); step != nil {
		stepID = step.GetString(dicom.ScheduledProcedureStepID)
	}

	ds := dicom.NewDataset()
	ds.AddString(dicom.PerformedProcedureStepEndDate, dicom.FormatDate(end))
	ds.AddString(dicom.PerformedProcedureStepEndTime, dicom.FormatTime(end))
	ds.AddString(dicom.PerformedProcedureStepStatus, string(mpps.Completed))
	ds.AddString(dicom.PerformedProcedureStepDescription, stepID)
	ds.AddString(dicom.PerformedProcedureTypeDescription, "")
	ds.AddSequence(dicom.PerformedProtocolCodeSequence)
	if doseComment != "" {
		ds.AddString(dicom.CommentsOnRadiationDose, doseComment)
	}

	items := make([]*dicom.Dataset, 0, len(series))
	for _, s := range series {
		sd := dicom.NewDataset()
		sd.AddString(dicom.RetrieveAETitle, s.RetrieveAETitle)
		sd.AddString(dicom.SeriesDescription, s.Description)
		sd.AddString(dicom.PerformingPhysicianName, "")
		sd.AddString(dicom.OperatorsName, "")
		sd.AddString(dicom.ProtocolName, s.ProtocolName)
		sd.AddString(dicom.SeriesInstanceUID, s.SeriesInstanceUID)

		images := make([]*dicom.Dataset, 0, len(s.Images))
		for _, img := range s.Images {
			id := dicom.NewDataset()
			id.AddString(dicom.ReferencedSOPClassUID, img.SOPClassUID)
			id.AddString(dicom.ReferencedSOPInstanceUID, img.SOPInstanceUID)
			images = append(images, id)
		}
		sd.AddSequence(dicom.ReferencedImageSequence, images...)
		items = append(items, sd)
	}
	ds.AddSequence(dicom.PerformedSeriesSequence, items...)
	return ds
}

// DiscontinuedDataset builds the N-SET attributes that abandon a procedure step.
func DiscontinuedDataset(end time.Time, reason string) *dicom.Dataset {
	ds := dicom.NewDataset()
	ds.AddString(dicom.PerformedProcedureStepEndDate, dicom.FormatDate(end))
	ds.AddString(dicom.PerformedProcedureStepEndTime, dicom.FormatTime(end))
	ds.AddString(dicom.PerformedProcedureStepStatus, string(mpps.Discontinued))
	if reason != "" {
		code := dicom.NewDataset()
		code.AddString(dicom.CodeMeaning, reason)
		ds.AddSequence(dicom.DiscontinuationReasonCodeSequence, code)
	}
	return ds
}
