package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/interfaces"
	"github.com/caio-sobreiro/dicomworklist/mpps"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// ProcedureTracker is the part of mpps.Tracker the MPPS service drives.
type ProcedureTracker interface {
	Start(ctx context.Context, instanceUID, procedureStepID string) (mpps.Outcome, error)
	Complete(ctx context.Context, instanceUID string, c mpps.Completion) (mpps.Outcome, error)
	Discontinue(ctx context.Context, instanceUID, reason string) (mpps.Outcome, error)
}

// MPPSService handles N-CREATE and N-SET on the Modality Performed Procedure
// Step SOP class. Register it for both commands.
type MPPSService struct {
	tracker ProcedureTracker
}

func NewMPPSService(tracker ProcedureTracker) *MPPSService {
	return &MPPSService{tracker: tracker}
}

func (s *MPPSService) HandleDIMSE(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext) (*types.Message, *dicom.Dataset, error) {
	if data == nil {
		data = dicom.NewDataset()
	}
	switch msg.CommandField {
	case types.NCreateRQ:
		return s.create(ctx, msg, data)
	case types.NSetRQ:
		return s.set(ctx, msg, data)
	}
	return CreateErrorResponse(msg, types.StatusUnrecognizedOperation), nil, nil
}

func (s *MPPSService) create(ctx context.Context, msg *types.Message, data *dicom.Dataset) (*types.Message, *dicom.Dataset, error) {
	b := NewResponseBuilder(msg)
	if msg.AffectedSOPClassUID != types.ModalityPerformedProcedureStep {
		return b.NCreateResponse(types.StatusSOPClassNotSupported, msg.AffectedSOPInstanceUID), nil, nil
	}

	instanceUID := msg.AffectedSOPInstanceUID
	if instanceUID == "" {
		instanceUID = dicom.NewUID()
	}
	var stepID string
	if item := data.FirstItem(dicom.ScheduledStepAttributesSequence); item != nil {
		stepID = item.GetString(dicom.ScheduledProcedureStepID)
	}

	logger := zerolog.Ctx(ctx).With().Str("instance_uid", instanceUID).Str("step_id", stepID).Logger()

	outcome, err := s.tracker.Start(ctx, instanceUID, stepID)
	if err != nil {
		return nil, nil, fmt.Errorf("start procedure step: %w", err)
	}
	logger.Info().Stringer("outcome", outcome).Msg("N-CREATE processed")
	return b.NCreateResponse(outcomeStatus(outcome), instanceUID), nil, nil
}

func (s *MPPSService) set(ctx context.Context, msg *types.Message, data *dicom.Dataset) (*types.Message, *dicom.Dataset, error) {
	b := NewResponseBuilder(msg)
	if msg.RequestedSOPClassUID != types.ModalityPerformedProcedureStep {
		return b.NSetResponse(types.StatusSOPClassNotSupported), nil, nil
	}

	instanceUID := msg.RequestedSOPInstanceUID
	status := mpps.State(data.GetString(dicom.PerformedProcedureStepStatus))
	logger := zerolog.Ctx(ctx).With().Str("instance_uid", instanceUID).Str("status", string(status)).Logger()

	var (
		outcome mpps.Outcome
		err     error
	)
	switch status {
	case mpps.Completed:
		outcome, err = s.tracker.Complete(ctx, instanceUID, mpps.Completion{
			DoseComment:     data.GetString(dicom.CommentsOnRadiationDose),
			SOPInstanceUIDs: referencedInstances(data),
		})
	case mpps.Discontinued:
		var reason string
		if item := data.FirstItem(dicom.DiscontinuationReasonCodeSequence); item != nil {
			reason = item.GetString(dicom.CodeMeaning)
		}
		outcome, err = s.tracker.Discontinue(ctx, instanceUID, reason)
	default:
		logger.Warn().Msg("N-SET with unsupported procedure step status")
		return b.NSetResponse(types.StatusInvalidAttributeValue), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("update procedure step: %w", err)
	}
	logger.Info().Stringer("outcome", outcome).Msg("N-SET processed")
	return b.NSetResponse(outcomeStatus(outcome)), nil, nil
}

// referencedInstances collects every image reported under the performed series.
func referencedInstances(data *dicom.Dataset) []string {
	var uids []string
	series, _ := data.GetSequence(dicom.PerformedSeriesSequence)
	for _, s := range series {
		images, _ := s.GetSequence(dicom.ReferencedImageSequence)
		for _, img := range images {
			if uid := img.GetString(dicom.ReferencedSOPInstanceUID); uid != "" {
				uids = append(uids, uid)
			}
		}
	}
	return uids
}

func outcomeStatus(o mpps.Outcome) uint16 {
	switch o {
	case mpps.Accepted:
		return types.StatusSuccess
	case mpps.DuplicateInstance:
		return types.StatusDuplicateSOPInstance
	}
	return types.StatusProcessingFailure
}
