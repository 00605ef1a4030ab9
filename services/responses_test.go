package services

import (
	"testing"

	"github.com/caio-sobreiro/dicomworklist/types"
)

func TestResponseBuilder(t *testing.T) {
	find := &types.Message{CommandField: types.CFindRQ, MessageID: 11, AffectedSOPClassUID: types.ModalityWorklistInformationFind}
	create := &types.Message{CommandField: types.NCreateRQ, MessageID: 12, AffectedSOPClassUID: types.ModalityPerformedProcedureStep}
	set := &types.Message{CommandField: types.NSetRQ, MessageID: 13, RequestedSOPClassUID: types.ModalityPerformedProcedureStep, RequestedSOPInstanceUID: "1.2.3.4"}

	tests := []struct {
		name         string
		got          *types.Message
		wantCommand  uint16
		wantStatus   uint16
		wantID       uint16
		wantSOPClass string
		wantInstance string
	}{
		{"echo", NewCEchoResponse(&types.Message{CommandField: types.CEchoRQ, MessageID: 10}, types.StatusSuccess), types.CEchoRSP, types.StatusSuccess, 10, types.VerificationSOPClass, ""},
		{"find pending", NewCFindPendingResponse(find), types.CFindRSP, types.StatusPending, 11, types.ModalityWorklistInformationFind, ""},
		{"find success", NewCFindSuccessResponse(find), types.CFindRSP, types.StatusSuccess, 11, types.ModalityWorklistInformationFind, ""},
		{"find error", NewCFindErrorResponse(find, types.StatusSOPClassNotSupported), types.CFindRSP, types.StatusSOPClassNotSupported, 11, types.ModalityWorklistInformationFind, ""},
		{"n-create", NewResponseBuilder(create).NCreateResponse(types.StatusSuccess, "9.8.7"), types.NCreateRSP, types.StatusSuccess, 12, types.ModalityPerformedProcedureStep, "9.8.7"},
		{"n-set", NewResponseBuilder(set).NSetResponse(types.StatusInvalidAttributeValue), types.NSetRSP, types.StatusInvalidAttributeValue, 13, types.ModalityPerformedProcedureStep, "1.2.3.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.CommandField != tt.wantCommand {
				t.Errorf("CommandField = 0x%04x, want 0x%04x", tt.got.CommandField, tt.wantCommand)
			}
			if tt.got.Status != tt.wantStatus {
				t.Errorf("Status = 0x%04x, want 0x%04x", tt.got.Status, tt.wantStatus)
			}
			if tt.got.MessageIDBeingRespondedTo != tt.wantID {
				t.Errorf("MessageIDBeingRespondedTo = %d, want %d", tt.got.MessageIDBeingRespondedTo, tt.wantID)
			}
			if tt.got.AffectedSOPClassUID != tt.wantSOPClass {
				t.Errorf("AffectedSOPClassUID = %q, want %q", tt.got.AffectedSOPClassUID, tt.wantSOPClass)
			}
			if tt.got.AffectedSOPInstanceUID != tt.wantInstance {
				t.Errorf("AffectedSOPInstanceUID = %q, want %q", tt.got.AffectedSOPInstanceUID, tt.wantInstance)
			}
			if tt.got.HasDataset() {
				t.Error("builder responses default to no data set")
			}
		})
	}
}
