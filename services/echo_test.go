package services

import (
	"context"
	"testing"

	"github.com/caio-sobreiro/dicomworklist/types"
)

func TestEchoService_HandleDIMSE(t *testing.T) {
	service := NewEchoService()
	msg := &types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:           42,
		AffectedSOPClassUID: types.VerificationSOPClass,
		CommandDataSetType:  types.NoDataSet,
	}

	resp, data, err := service.HandleDIMSE(context.Background(), msg, nil, testMeta())
	if err != nil {
		t.Fatalf("HandleDIMSE() error = %v", err)
	}
	if data != nil {
		t.Error("C-ECHO response must not carry a data set")
	}
	if resp.CommandField != types.CEchoRSP {
		t.Errorf("CommandField = 0x%04x, want 0x%04x", resp.CommandField, types.CEchoRSP)
	}
	if resp.Status != types.StatusSuccess {
		t.Errorf("Status = 0x%04x", resp.Status)
	}
	if resp.MessageIDBeingRespondedTo != 42 {
		t.Errorf("MessageIDBeingRespondedTo = %d", resp.MessageIDBeingRespondedTo)
	}
	if resp.AffectedSOPClassUID != types.VerificationSOPClass {
		t.Errorf("AffectedSOPClassUID = %s", resp.AffectedSOPClassUID)
	}
}
