// Package services provides the DICOM services of the worklist SCP:
// verification, Modality Worklist C-FIND and Modality Performed Procedure
// Step N-CREATE / N-SET, plus the registry that routes commands to them.
package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/interfaces"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// EchoService handles C-ECHO verification requests.
//
// C-ECHO is used to verify connectivity and application-level communication
// between two DICOM Application Entities (AEs). It's the DICOM equivalent
// of a "ping" operation.
type EchoService struct{}

// NewEchoService creates a new C-ECHO service instance.
func NewEchoService() *EchoService {
	return &EchoService{}
}

// HandleDIMSE answers a C-ECHO request with success. C-ECHO carries no data
// set in either direction.
func (s *EchoService) HandleDIMSE(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext) (*types.Message, *dicom.Dataset, error) {
	zerolog.Ctx(ctx).Info().
		Uint16("message_id", msg.MessageID).
		Str("calling_ae", meta.CallingAETitle).
		Msg("C-ECHO request successful")

	return NewCEchoResponse(msg, types.StatusSuccess), nil, nil
}
