// Package dimse reassembles DIMSE messages from PDV fragments, dispatches them
// to a service handler and encodes the handler's responses.
package dimse

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/interfaces"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// Service manages DIMSE operations and message routing for one association.
type Service struct {
	handler interfaces.StreamingServiceHandler
	pending Assembler
	logger  zerolog.Logger
}

// NewService creates a new DIMSE service with a handler.
func NewService(handler interfaces.StreamingServiceHandler, logger zerolog.Logger) *Service {
	return &Service{
		handler: handler,
		logger:  logger,
	}
}

// HandleDIMSEMessage consumes one PDV and processes the message once its
// last fragment has arrived.
func (d *Service) HandleDIMSEMessage(ctx context.Context, presContextID byte, msgCtrlHeader byte, data []byte, pduLayer interfaces.PDULayer) error {
	d.logger.Trace().
		Uint8("context_id", presContextID).
		Uint8("control_header", msgCtrlHeader).
		Int("size_bytes", len(data)).
		Msg("Received PDV")

	complete, err := d.pending.Add(presContextID, msgCtrlHeader, data)
	if err != nil {
		d.pending.Reset()
		return err
	}
	if !complete {
		return nil
	}

	contextID, msg, dataset := d.pending.Take()
	return d.processCompleteMessage(ctx, contextID, msg, dataset, pduLayer)
}

// processCompleteMessage runs the handler for a complete message. Handler and
// decoding failures answer the request with a failure status; only transport
// errors and cancellation are returned.
func (d *Service) processCompleteMessage(ctx context.Context, presContextID byte, msg *types.Message, datasetData []byte, pduLayer interfaces.PDULayer) error {
	pc, err := pduLayer.GetPresentationContext(presContextID)
	if err != nil {
		return err
	}
	calling, called := pduLayer.AETitles()
	meta := interfaces.MessageContext{
		PresentationContextID: presContextID,
		AbstractSyntax:        pc.AbstractSyntax,
		TransferSyntax:        pc.TransferSyntax,
		CallingAETitle:        calling,
		CalledAETitle:         called,
	}

	logger := d.logger.With().
		Str("command", types.CommandName(msg.CommandField)).
		Uint16("message_id", msg.MessageID).
		Str("calling_ae", calling).
		Logger()
	ctx = logger.WithContext(ctx)

	// C-CANCEL has no response. Requests are handled to completion before the
	// next message is read, so the step it names has already finished.
	if msg.CommandField == types.CCancelRQ {
		logger.Debug().
			Uint16("cancelled_message_id", msg.MessageIDBeingRespondedTo).
			Msg("Ignoring C-CANCEL for a completed request")
		return nil
	}

	responder := &responseHandler{
		pduLayer:       pduLayer,
		presContextID:  presContextID,
		transferSyntax: pc.TransferSyntax,
	}

	var dataset *dicom.Dataset
	if msg.HasDataset() {
		dataset, err = dicom.ParseDatasetWithTransferSyntax(datasetData, pc.TransferSyntax)
		if err != nil {
			logger.Warn().Err(err).Int("dataset_size", len(datasetData)).Msg("Failed to parse data set")
			return responder.SendResponse(FailureResponse(msg, "invalid data set"), nil)
		}
	}

	logger.Debug().Int("dataset_size", len(datasetData)).Msg("Processing DIMSE message")

	err = d.handler.HandleDIMSEStreaming(ctx, msg, dataset, meta, responder)
	switch {
	case responder.err != nil:
		return responder.err
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		logger.Error().Err(err).Msg("Service handler failed")
		if responder.final {
			return nil
		}
		return responder.SendResponse(FailureResponse(msg, err.Error()), nil)
	case !responder.final:
		logger.Error().Msg("Service handler sent no final response")
		return responder.SendResponse(FailureResponse(msg, "no response"), nil)
	}
	return nil
}

// FailureResponse builds the generic failure answer to req: 0xC000 for
// composite commands and 0x0110 for normalized ones.
func FailureResponse(req *types.Message, comment string) *types.Message {
	status := uint16(types.StatusFailure)
	if req.CommandField >= types.NEventReportRQ && req.CommandField != types.CCancelRQ {
		status = types.StatusProcessingFailure
	}
	sopClass := req.AffectedSOPClassUID
	if sopClass == "" {
		sopClass = req.RequestedSOPClassUID
	}
	instance := req.AffectedSOPInstanceUID
	if instance == "" {
		instance = req.RequestedSOPInstanceUID
	}
	return &types.Message{
		CommandField:              types.ResponseCommandFor(req.CommandField),
		MessageIDBeingRespondedTo: req.MessageID,
		AffectedSOPClassUID:       sopClass,
		AffectedSOPInstanceUID:    instance,
		Status:                    status,
		ErrorComment:              comment,
	}
}

// responseHandler implements ResponseSender for one request.
type responseHandler struct {
	pduLayer       interfaces.PDULayer
	presContextID  byte
	transferSyntax string

	final bool
	err   error
}

var errAfterFinal = errors.New("dimse: response after final status")

// SendResponse encodes msg and data on the request's presentation context.
// The command data set type is derived from data.
func (r *responseHandler) SendResponse(msg *types.Message, data *dicom.Dataset) error {
	if r.err != nil {
		return r.err
	}
	if r.final {
		return errAfterFinal
	}

	resp := *msg
	var payload []byte
	if data != nil {
		encoded, err := dicom.EncodeDatasetWithTransferSyntax(data, r.transferSyntax)
		if err != nil {
			return fmt.Errorf("failed to encode response data set: %w", err)
		}
		payload = encoded
		if payload == nil {
			payload = []byte{}
		}
		resp.CommandDataSetType = types.DataSetPresent
	} else {
		resp.CommandDataSetType = types.NoDataSet
	}

	if err := r.pduLayer.SendDIMSEResponseWithDataset(r.presContextID, EncodeCommand(&resp), payload); err != nil {
		r.err = err
		return err
	}
	if !types.IsPending(resp.Status) {
		r.final = true
	}
	return nil
}
