package client

import (
	"fmt"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// CFindRequest encapsulates the information required to perform a C-FIND query.
type CFindRequest struct {
	SOPClassUID string
	MessageID   uint16
	Priority    uint16
	Dataset     *dicom.Dataset
}

// CFindResponse represents a single C-FIND response from the SCP.
type CFindResponse struct {
	Status       uint16
	MessageID    uint16
	ErrorComment string
	Dataset      *dicom.Dataset
}

// SendCFind performs a DICOM C-FIND query and returns all responses in order,
// the final one last. The SOP class defaults to Modality Worklist.
func (a *Association) SendCFind(req *CFindRequest) ([]*CFindResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("c-find request cannot be nil")
	}
	if req.Dataset == nil {
		return nil, fmt.Errorf("c-find request requires a dataset")
	}

	sopClass := req.SOPClassUID
	if sopClass == "" {
		sopClass = types.ModalityWorklistInformationFind
	}
	messageID := req.MessageID
	if messageID == 0 {
		messageID = a.messageID()
	}

	command := &types.Message{
		CommandField:        types.CFindRQ,
		MessageID:           messageID,
		Priority:            req.Priority,
		AffectedSOPClassUID: sopClass,
	}
	if err := a.sendDIMSEMessage(sopClass, command, req.Dataset); err != nil {
		return nil, fmt.Errorf("failed to send C-FIND request: %w", err)
	}

	var responses []*CFindResponse
	for {
		msg, dataset, err := a.receiveDIMSEMessage()
		if err != nil {
			return nil, err
		}
		if err := expectResponse(types.CFindRQ, messageID, msg); err != nil {
			return nil, err
		}

		responses = append(responses, &CFindResponse{
			Status:       msg.Status,
			MessageID:    msg.MessageIDBeingRespondedTo,
			ErrorComment: msg.ErrorComment,
			Dataset:      dataset,
		})

		if !types.IsPending(msg.Status) {
			a.logger.Debug().
				Uint16("message_id", messageID).
				Int("matches", len(responses)-1).
				Str("status", fmt.Sprintf("0x%04X", msg.Status)).
				Msg("C-FIND completed")
			return responses, nil
		}
	}
}

// FindWorklist runs a Modality Worklist query and returns the matched
// identifiers. A non-success final status is returned as a DIMSEError.
func (a *Association) FindWorklist(query *dicom.Dataset) ([]*dicom.Dataset, error) {
	responses, err := a.SendCFind(&CFindRequest{Dataset: query})
	if err != nil {
		return nil, err
	}

	var matches []*dicom.Dataset
	for _, resp := range responses {
		if types.IsPending(resp.Status) && resp.Dataset != nil {
			matches = append(matches, resp.Dataset)
		}
	}

	final := responses[len(responses)-1]
	if final.Status != types.StatusSuccess {
		return matches, dicomerrors.NewDIMSEError("C-FIND", final.Status, final.ErrorComment)
	}
	return matches, nil
}
