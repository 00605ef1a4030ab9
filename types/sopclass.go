package types

// DICOM Application Context UID
// The Application Context defines the DICOM application-level message exchange rules.
const ApplicationContextUID = "1.2.840.10008.3.1.1.1"

// SOP Class UIDs served by the worklist service (DICOM Part 4).
const (
	VerificationSOPClass = "1.2.840.10008.1.1"

	// Modality Worklist Information Model - FIND (Part 4, Annex K)
	ModalityWorklistInformationFind = "1.2.840.10008.5.1.4.31"

	// Modality Performed Procedure Step (Part 4, Annex F)
	ModalityPerformedProcedureStep = "1.2.840.10008.3.1.2.3.3"
)

// SOPClassInfo provides human-readable information about a SOP Class UID
type SOPClassInfo struct {
	UID      string
	Name     string
	Category string
}

// GetSOPClassInfo returns information about a SOP Class UID
func GetSOPClassInfo(uid string) *SOPClassInfo {
	info, ok := sopClassRegistry[uid]
	if !ok {
		return &SOPClassInfo{
			UID:      uid,
			Name:     "Unknown",
			Category: "Unknown",
		}
	}
	return &info
}

// WorklistSOPClasses lists the abstract syntaxes a worklist SCP accepts.
func WorklistSOPClasses() []string {
	return []string{VerificationSOPClass, ModalityWorklistInformationFind, ModalityPerformedProcedureStep}
}

var sopClassRegistry = map[string]SOPClassInfo{
	VerificationSOPClass: {
		UID:      VerificationSOPClass,
		Name:     "Verification SOP Class",
		Category: "Verification",
	},
	ModalityWorklistInformationFind: {
		UID:      ModalityWorklistInformationFind,
		Name:     "Modality Worklist Information Model - FIND",
		Category: "Worklist",
	},
	ModalityPerformedProcedureStep: {
		UID:      ModalityPerformedProcedureStep,
		Name:     "Modality Performed Procedure Step SOP Class",
		Category: "Procedure Step",
	},
}
