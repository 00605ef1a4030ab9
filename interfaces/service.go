// Package interfaces contains the handler contracts shared by the PDU, DIMSE
// and service layers.
package interfaces

import (
	"context"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// MessageContext describes where a DIMSE message arrived.
type MessageContext struct {
	PresentationContextID byte
	AbstractSyntax        string
	TransferSyntax        string
	CallingAETitle        string
	CalledAETitle         string
}

// ServiceHandler handles DIMSE operations that produce exactly one response.
type ServiceHandler interface {
	HandleDIMSE(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta MessageContext) (*types.Message, *dicom.Dataset, error)
}

// StreamingServiceHandler handles DIMSE operations that may send several
// responses, such as C-FIND.
type StreamingServiceHandler interface {
	HandleDIMSEStreaming(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta MessageContext, responder ResponseSender) error
}

// ResponseSender sends one response message. A nil dataset sends the command only.
type ResponseSender interface {
	SendResponse(msg *types.Message, data *dicom.Dataset) error
}

// DIMSEHandler receives PDV fragments from the PDU layer.
type DIMSEHandler interface {
	HandleDIMSEMessage(ctx context.Context, presContextID byte, msgCtrlHeader byte, data []byte, pduLayer PDULayer) error
}

// PDULayer is the view of an association the DIMSE layer needs.
type PDULayer interface {
	SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, dataset []byte) error
	GetPresentationContext(presContextID byte) (*types.PresentationContext, error)
	AETitles() (calling, called string)
}
