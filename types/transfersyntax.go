package types

// DICOM Transfer Syntax UIDs as defined in DICOM Part 5, Section 8 and Part 6, Annex A.4
// https://dicom.nema.org/medical/dicom/current/output/chtml/part05/chapter_8.html
const (
	// ImplicitVRLittleEndian - Default Transfer Syntax for DICOM
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"

	// ExplicitVRLittleEndian - Explicit VR with little endian byte ordering
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

	// ExplicitVRBigEndian - Explicit VR with big endian byte ordering (retired)
	ExplicitVRBigEndian = "1.2.840.10008.1.2.2"

	// DeflatedExplicitVRLittleEndian - Deflate compression with explicit VR
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
)

// TransferSyntaxInfo provides metadata about a transfer syntax
type TransferSyntaxInfo struct {
	UID       string
	Name      string
	IsRetired bool
}

var transferSyntaxRegistry = map[string]TransferSyntaxInfo{
	ImplicitVRLittleEndian:         {UID: ImplicitVRLittleEndian, Name: "Implicit VR Little Endian"},
	ExplicitVRLittleEndian:         {UID: ExplicitVRLittleEndian, Name: "Explicit VR Little Endian"},
	ExplicitVRBigEndian:            {UID: ExplicitVRBigEndian, Name: "Explicit VR Big Endian", IsRetired: true},
	DeflatedExplicitVRLittleEndian: {UID: DeflatedExplicitVRLittleEndian, Name: "Deflated Explicit VR Little Endian"},
}

// GetTransferSyntaxInfo returns information about a transfer syntax UID, or nil if unknown.
func GetTransferSyntaxInfo(uid string) *TransferSyntaxInfo {
	info, ok := transferSyntaxRegistry[uid]
	if !ok {
		return nil
	}
	return &info
}

// SupportedTransferSyntaxes returns the transfer syntaxes the dataset codec
// can read and write, in order of preference.
func SupportedTransferSyntaxes() []string {
	return []string{ExplicitVRLittleEndian, ImplicitVRLittleEndian}
}

// IsSupportedTransferSyntax reports whether the codec handles uid.
func IsSupportedTransferSyntax(uid string) bool {
	return uid == ExplicitVRLittleEndian || uid == ImplicitVRLittleEndian
}
