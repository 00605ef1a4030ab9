package services

import (
	"context"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/interfaces"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// mockHandler implements interfaces.ServiceHandler
type mockHandler struct {
	handleFunc func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext) (*types.Message, *dicom.Dataset, error)
}

func (m *mockHandler) HandleDIMSE(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext) (*types.Message, *dicom.Dataset, error) {
	if m.handleFunc != nil {
		return m.handleFunc(ctx, msg, data, meta)
	}
	return &types.Message{
		CommandField:              types.ResponseCommandFor(msg.CommandField),
		MessageIDBeingRespondedTo: msg.MessageID,
		Status:                    types.StatusSuccess,
	}, nil, nil
}

// mockStreamingHandler implements interfaces.StreamingServiceHandler
type mockStreamingHandler struct {
	responses int
}

func (m *mockStreamingHandler) HandleDIMSEStreaming(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
	for range m.responses {
		if err := responder.SendResponse(NewCFindPendingResponse(msg), dicom.NewDataset()); err != nil {
			return err
		}
	}
	return responder.SendResponse(NewCFindSuccessResponse(msg), nil)
}

// mockResponder implements interfaces.ResponseSender
type mockResponder struct {
	responses []*types.Message
	datasets  []*dicom.Dataset
	sendFunc  func(msg *types.Message, dataset *dicom.Dataset) error
}

func (m *mockResponder) SendResponse(msg *types.Message, dataset *dicom.Dataset) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(msg, dataset); err != nil {
			return err
		}
	}
	m.responses = append(m.responses, msg)
	m.datasets = append(m.datasets, dataset)
	return nil
}

func (m *mockResponder) last() *types.Message {
	if len(m.responses) == 0 {
		return nil
	}
	return m.responses[len(m.responses)-1]
}

func testMeta() interfaces.MessageContext {
	return interfaces.MessageContext{
		PresentationContextID: 1,
		TransferSyntax:        types.ExplicitVRLittleEndian,
		CallingAETitle:        "MODALITY",
		CalledAETitle:         "WORKLIST",
	}
}
