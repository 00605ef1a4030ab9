package services

import (
	"github.com/caio-sobreiro/dicomworklist/types"
)

// ResponseBuilder provides convenient methods for creating standard DIMSE response messages.
//
// The builder populates MessageIDBeingRespondedTo and the affected SOP class
// from the request. CommandDataSetType is filled in by the DIMSE layer from
// whether a data set accompanies the response.
type ResponseBuilder struct {
	request *types.Message
}

// NewResponseBuilder creates a new response builder for the given request message.
func NewResponseBuilder(request *types.Message) *ResponseBuilder {
	return &ResponseBuilder{request: request}
}

func (b *ResponseBuilder) response(status uint16) *types.Message {
	sopClass := b.request.AffectedSOPClassUID
	if sopClass == "" {
		sopClass = b.request.RequestedSOPClassUID
	}
	return &types.Message{
		CommandField:              types.ResponseCommandFor(b.request.CommandField),
		MessageIDBeingRespondedTo: b.request.MessageID,
		AffectedSOPClassUID:       sopClass,
		CommandDataSetType:        types.NoDataSet,
		Status:                    status,
	}
}

// CEchoResponse creates a C-ECHO-RSP message.
func (b *ResponseBuilder) CEchoResponse(status uint16) *types.Message {
	resp := b.response(status)
	resp.CommandField = types.CEchoRSP
	resp.AffectedSOPClassUID = types.VerificationSOPClass
	return resp
}

// CFindResponse creates a C-FIND-RSP message. Pending responses carry one
// match each; the final response carries none.
func (b *ResponseBuilder) CFindResponse(status uint16) *types.Message {
	resp := b.response(status)
	resp.CommandField = types.CFindRSP
	return resp
}

// NCreateResponse creates an N-CREATE-RSP for the instance the SCP created
// or was asked to create.
func (b *ResponseBuilder) NCreateResponse(status uint16, instanceUID string) *types.Message {
	resp := b.response(status)
	resp.CommandField = types.NCreateRSP
	resp.AffectedSOPInstanceUID = instanceUID
	return resp
}

// NSetResponse creates an N-SET-RSP. The requested instance is echoed as the
// affected instance.
func (b *ResponseBuilder) NSetResponse(status uint16) *types.Message {
	resp := b.response(status)
	resp.CommandField = types.NSetRSP
	resp.AffectedSOPInstanceUID = b.request.RequestedSOPInstanceUID
	return resp
}

// Helper functions for creating responses without a builder instance

// NewCEchoResponse creates a C-ECHO-RSP message from a request.
func NewCEchoResponse(request *types.Message, status uint16) *types.Message {
	return NewResponseBuilder(request).CEchoResponse(status)
}

// NewCFindPendingResponse creates a pending C-FIND-RSP message.
func NewCFindPendingResponse(request *types.Message) *types.Message {
	return NewResponseBuilder(request).CFindResponse(types.StatusPending)
}

// NewCFindSuccessResponse creates a final success C-FIND-RSP message.
func NewCFindSuccessResponse(request *types.Message) *types.Message {
	return NewResponseBuilder(request).CFindResponse(types.StatusSuccess)
}

// NewCFindErrorResponse creates an error C-FIND-RSP message.
func NewCFindErrorResponse(request *types.Message, status uint16) *types.Message {
	return NewResponseBuilder(request).CFindResponse(status)
}
