package client

import (
	"fmt"

	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// CEchoResponse represents the result of a C-ECHO operation.
type CEchoResponse struct {
	Status    uint16
	MessageID uint16
}

// SendCEcho performs a DICOM C-ECHO (verification) request and returns the
// response status. A zero messageID takes the association's next ID.
func (a *Association) SendCEcho(messageID uint16) (*CEchoResponse, error) {
	if messageID == 0 {
		messageID = a.messageID()
	}

	command := &types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:           messageID,
		AffectedSOPClassUID: types.VerificationSOPClass,
	}
	if err := a.sendDIMSEMessage(types.VerificationSOPClass, command, nil); err != nil {
		return nil, fmt.Errorf("failed to send C-ECHO request: %w", err)
	}

	msg, _, err := a.receiveDIMSEMessage()
	if err != nil {
		return nil, err
	}
	if err := expectResponse(types.CEchoRQ, messageID, msg); err != nil {
		return nil, err
	}

	return &CEchoResponse{
		Status:    msg.Status,
		MessageID: msg.MessageIDBeingRespondedTo,
	}, nil
}

// Echo verifies the association, failing on any non-success status.
func (a *Association) Echo() error {
	resp, err := a.SendCEcho(0)
	if err != nil {
		return err
	}
	if resp.Status != types.StatusSuccess {
		return dicomerrors.NewDIMSEError("C-ECHO", resp.Status, "verification failed")
	}
	return nil
}
