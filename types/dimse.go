package types

import "fmt"

// DIMSE Command types
const (
	CStoreRQ        = 0x0001
	CStoreRSP       = 0x8001
	CFindRQ         = 0x0020
	CFindRSP        = 0x8020
	CEchoRQ         = 0x0030
	CEchoRSP        = 0x8030
	NEventReportRQ  = 0x0100
	NEventReportRSP = 0x8100
	NGetRQ          = 0x0110
	NGetRSP         = 0x8110
	NSetRQ          = 0x0120
	NSetRSP         = 0x8120
	NActionRQ       = 0x0130
	NActionRSP      = 0x8130
	NCreateRQ       = 0x0140
	NCreateRSP      = 0x8140
	NDeleteRQ       = 0x0150
	NDeleteRSP      = 0x8150
	CCancelRQ       = 0x0FFF
)

// DIMSE Status codes
const (
	StatusSuccess                = 0x0000
	StatusPending                = 0xFF00
	StatusCancel                 = 0xFE00
	StatusFailure                = 0xC000
	StatusInvalidAttributeValue  = 0x0106
	StatusProcessingFailure      = 0x0110
	StatusDuplicateSOPInstance   = 0x0111
	StatusNoSuchObjectInstance   = 0x0112
	StatusSOPClassNotSupported   = 0x0122
	StatusUnrecognizedOperation  = 0x0211
	StatusIdentifierDoesNotMatch = 0xA900
)

// CommandDataSetType values
const (
	DataSetPresent = 0x0000
	NoDataSet      = 0x0101
)

// Message represents a parsed DIMSE command
type Message struct {
	CommandField              uint16
	MessageID                 uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	RequestedSOPClassUID      string
	RequestedSOPInstanceUID   string
	Priority                  uint16
	CommandDataSetType        uint16
	Status                    uint16
	MessageIDBeingRespondedTo uint16
	ErrorComment              string
}

// HasDataset reports whether a data set follows the command.
func (m *Message) HasDataset() bool {
	return m.CommandDataSetType != NoDataSet
}

// IsPending reports whether a response status is one of the pending codes.
func IsPending(status uint16) bool {
	return status == StatusPending || status == 0xFF01
}

// ResponseCommandFor maps a DIMSE request command to its corresponding response command.
func ResponseCommandFor(request uint16) uint16 {
	return request | 0x8000
}

var commandNames = map[uint16]string{
	CStoreRQ:        "C-STORE-RQ",
	CStoreRSP:       "C-STORE-RSP",
	CFindRQ:         "C-FIND-RQ",
	CFindRSP:        "C-FIND-RSP",
	CEchoRQ:         "C-ECHO-RQ",
	CEchoRSP:        "C-ECHO-RSP",
	NEventReportRQ:  "N-EVENT-REPORT-RQ",
	NEventReportRSP: "N-EVENT-REPORT-RSP",
	NGetRQ:          "N-GET-RQ",
	NGetRSP:         "N-GET-RSP",
	NSetRQ:          "N-SET-RQ",
	NSetRSP:         "N-SET-RSP",
	NActionRQ:       "N-ACTION-RQ",
	NActionRSP:      "N-ACTION-RSP",
	NCreateRQ:       "N-CREATE-RQ",
	NCreateRSP:      "N-CREATE-RSP",
	NDeleteRQ:       "N-DELETE-RQ",
	NDeleteRSP:      "N-DELETE-RSP",
	CCancelRQ:       "C-CANCEL-RQ",
}

// CommandName returns the DIMSE name of a command field, for logging.
func CommandName(command uint16) string {
	if name, ok := commandNames[command]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", command)
}
