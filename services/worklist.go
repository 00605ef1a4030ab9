package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/interfaces"
	"github.com/caio-sobreiro/dicomworklist/types"
	"github.com/caio-sobreiro/dicomworklist/worklist"
)

// WorklistService answers Modality Worklist C-FIND requests from a snapshot
// of worklist entries.
type WorklistService struct {
	entries worklist.Snapshot
	matcher worklist.Matcher
}

// NewWorklistService creates a C-FIND service over entries. The matcher's
// location decides how date filters are read.
func NewWorklistService(entries worklist.Snapshot, matcher worklist.Matcher) *WorklistService {
	return &WorklistService{entries: entries, matcher: matcher}
}

// HandleDIMSEStreaming sends one pending response per matching entry followed
// by a final success. It stops sending as soon as ctx is done.
func (s *WorklistService) HandleDIMSEStreaming(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
	logger := zerolog.Ctx(ctx)

	if msg.AffectedSOPClassUID != types.ModalityWorklistInformationFind {
		logger.Warn().Str("sop_class", msg.AffectedSOPClassUID).Msg("C-FIND for unsupported SOP class")
		return responder.SendResponse(NewCFindErrorResponse(msg, types.StatusSOPClassNotSupported), nil)
	}

	query := worklist.QueryFromDataset(data)
	if _, err := s.matcher.DateFilter(query); err != nil {
		logger.Warn().Err(err).Msg("Ignoring malformed scheduled date filter")
	}

	matches := 0
	for result := range s.matcher.Filter(query, s.entries.Current()) {
		if err := ctx.Err(); err != nil {
			logger.Info().Int("matches_sent", matches).Msg("C-FIND cancelled")
			return err
		}
		if err := responder.SendResponse(NewCFindPendingResponse(msg), result.Dataset()); err != nil {
			return err
		}
		matches++
	}

	logger.Info().Int("matches", matches).Msg("C-FIND completed")
	return responder.SendResponse(NewCFindSuccessResponse(msg), nil)
}
