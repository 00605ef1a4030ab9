package worklist

import "github.com/caio-sobreiro/dicomworklist/dicom"

// Attribute identifies a top-level worklist key the matcher understands.
type Attribute int

// Top-level worklist attributes.
const (
	AccessionNumber Attribute = iota + 1
	InstitutionName
	ReferringPhysicianName
	PatientName
	PatientID
	PatientBirthDate
	PatientSex
	StudyInstanceUID
	RequestingPhysician
	RequestedProcedureDescription
	RequestedProcedureID

	// Type 2 attributes that are always returned empty.
	ReferencedStudySequence
	RequestedProcedurePriority
	PatientTransportArrangements
	AdmissionID
	CurrentPatientLocation
	ReferencedPatientSequence
	PatientWeight
	ConfidentialityConstraint
)

// StepAttribute identifies a key inside the Scheduled Procedure Step Sequence.
type StepAttribute int

// Scheduled procedure step attributes.
const (
	ScheduledStationAETitle StepAttribute = iota + 1
	ScheduledProcedureStepStartDate
	ScheduledProcedureStepStartTime
	ScheduledProcedureStepStartDateTime
	Modality
	ScheduledPerformingPhysicianName
	ScheduledProcedureStepDescription
	ScheduledProcedureStepID
	ScheduledStationName
	ScheduledProcedureStepLocation
)

var attributeTags = map[Attribute]dicom.Tag{
	AccessionNumber:               dicom.AccessionNumber,
	InstitutionName:               dicom.InstitutionName,
	ReferringPhysicianName:        dicom.ReferringPhysicianName,
	PatientName:                   dicom.PatientName,
	PatientID:                     dicom.PatientID,
	PatientBirthDate:              dicom.PatientBirthDate,
	PatientSex:                    dicom.PatientSex,
	StudyInstanceUID:              dicom.StudyInstanceUID,
	RequestingPhysician:           dicom.RequestingPhysician,
	RequestedProcedureDescription: dicom.RequestedProcedureDescription,
	RequestedProcedureID:          dicom.RequestedProcedureID,
	ReferencedStudySequence:       dicom.ReferencedStudySequence,
	RequestedProcedurePriority:    dicom.RequestedProcedurePriority,
	PatientTransportArrangements:  dicom.PatientTransportArrangements,
	AdmissionID:                   dicom.AdmissionID,
	CurrentPatientLocation:        dicom.CurrentPatientLocation,
	ReferencedPatientSequence:     dicom.ReferencedPatientSeq,
	PatientWeight:                 dicom.PatientWeight,
	ConfidentialityConstraint:     dicom.ConfidentialityConstraint,
}

var stepAttributeTags = map[StepAttribute]dicom.Tag{
	ScheduledStationAETitle:             dicom.ScheduledStationAETitle,
	ScheduledProcedureStepStartDate:     dicom.ScheduledProcedureStepStartDate,
	ScheduledProcedureStepStartTime:     dicom.ScheduledProcedureStepStartTime,
	ScheduledProcedureStepStartDateTime: dicom.ScheduledProcedureStepStartDateTime,
	Modality:                            dicom.Modality,
	ScheduledPerformingPhysicianName:    dicom.ScheduledPerformingPhysicianName,
	ScheduledProcedureStepDescription:   dicom.ScheduledProcedureStepDescription,
	ScheduledProcedureStepID:            dicom.ScheduledProcedureStepID,
	ScheduledStationName:                dicom.ScheduledStationName,
	ScheduledProcedureStepLocation:      dicom.ScheduledProcedureStepLocation,
}

// Attributes returns every top-level attribute in declaration order.
func Attributes() []Attribute {
	out := make([]Attribute, 0, len(attributeTags))
	for a := AccessionNumber; a <= ConfidentialityConstraint; a++ {
		out = append(out, a)
	}
	return out
}

// StepAttributes returns every step attribute in declaration order.
func StepAttributes() []StepAttribute {
	out := make([]StepAttribute, 0, len(stepAttributeTags))
	for a := ScheduledStationAETitle; a <= ScheduledProcedureStepLocation; a++ {
		out = append(out, a)
	}
	return out
}

// Tag returns the DICOM tag for the attribute.
func (a Attribute) Tag() dicom.Tag { return attributeTags[a] }

// VR returns the dictionary VR of the attribute's tag.
func (a Attribute) VR() string { return dicom.VRFor(a.Tag()) }

func (a Attribute) String() string {
	if name := dicom.Name(a.Tag()); name != "" {
		return name
	}
	return "Attribute(?)"
}

// Tag returns the DICOM tag for the step attribute.
func (a StepAttribute) Tag() dicom.Tag { return stepAttributeTags[a] }

// VR returns the dictionary VR of the step attribute's tag.
func (a StepAttribute) VR() string { return dicom.VRFor(a.Tag()) }

func (a StepAttribute) String() string {
	if name := dicom.Name(a.Tag()); name != "" {
		return name
	}
	return "StepAttribute(?)"
}
