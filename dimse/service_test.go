package dimse

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/interfaces"
	"github.com/caio-sobreiro/dicomworklist/pdu"
	"github.com/caio-sobreiro/dicomworklist/types"
)

type sentMessage struct {
	contextID byte
	command   *types.Message
	dataset   []byte
}

// MockPDULayer records responses instead of writing them to a connection.
type MockPDULayer struct {
	TransferSyntaxUID string
	SendErr           error
	Sent              []sentMessage
}

func (m *MockPDULayer) SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, datasetData []byte) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	cmd, err := DecodeCommand(commandData)
	if err != nil {
		return err
	}
	m.Sent = append(m.Sent, sentMessage{contextID: presContextID, command: cmd, dataset: datasetData})
	return nil
}

func (m *MockPDULayer) GetPresentationContext(presContextID byte) (*types.PresentationContext, error) {
	if presContextID != 1 {
		return nil, dicomerrors.ErrNoPresentationCtx
	}
	return &types.PresentationContext{
		ID:             1,
		AbstractSyntax: types.ModalityWorklistInformationFind,
		TransferSyntax: m.TransferSyntaxUID,
		Result:         types.ContextAccepted,
	}, nil
}

func (m *MockPDULayer) AETitles() (string, string) {
	return "MODALITY", "WORKLIST"
}

// MockServiceHandler is a streaming handler driven by a test function.
type MockServiceHandler struct {
	HandleFunc func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error
	Calls      int
}

func (m *MockServiceHandler) HandleDIMSEStreaming(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
	m.Calls++
	return m.HandleFunc(ctx, msg, data, meta, responder)
}

func successFor(msg *types.Message) *types.Message {
	return &types.Message{
		CommandField:              types.ResponseCommandFor(msg.CommandField),
		MessageIDBeingRespondedTo: msg.MessageID,
		AffectedSOPClassUID:       msg.AffectedSOPClassUID,
		Status:                    types.StatusSuccess,
	}
}

// deliver feeds a command and optional data set to the service as PDVs,
// fragmented to maxPDU.
func deliver(t *testing.T, s *Service, layer *MockPDULayer, msg *types.Message, data []byte, maxPDU uint32) error {
	t.Helper()
	pdvs := pdu.Fragment(1, true, EncodeCommand(msg), maxPDU)
	if data != nil {
		pdvs = append(pdvs, pdu.Fragment(1, false, data, maxPDU)...)
	}
	for _, p := range pdvs {
		if err := s.HandleDIMSEMessage(context.Background(), p.ContextID, p.Control, p.Data, layer); err != nil {
			return err
		}
	}
	return nil
}

func TestNewService(t *testing.T) {
	service := NewService(&MockServiceHandler{}, zerolog.Nop())
	if service == nil || service.handler == nil {
		t.Fatal("Expected service with handler")
	}
}

func TestService_EchoNoDataset(t *testing.T) {
	var gotMeta interfaces.MessageContext
	handler := &MockServiceHandler{
		HandleFunc: func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
			gotMeta = meta
			if data != nil {
				t.Error("expected no data set")
			}
			return responder.SendResponse(successFor(msg), nil)
		},
	}
	layer := &MockPDULayer{TransferSyntaxUID: types.ImplicitVRLittleEndian}
	service := NewService(handler, zerolog.Nop())

	req := &types.Message{CommandField: types.CEchoRQ, MessageID: 1, AffectedSOPClassUID: types.VerificationSOPClass, CommandDataSetType: types.NoDataSet}
	if err := deliver(t, service, layer, req, nil, 0); err != nil {
		t.Fatalf("HandleDIMSEMessage() error = %v", err)
	}

	if len(layer.Sent) != 1 {
		t.Fatalf("expected 1 response, got %d", len(layer.Sent))
	}
	resp := layer.Sent[0]
	if resp.command.CommandField != types.CEchoRSP || resp.command.Status != types.StatusSuccess || resp.command.MessageIDBeingRespondedTo != 1 {
		t.Errorf("response = %+v", resp.command)
	}
	if resp.command.HasDataset() || resp.dataset != nil {
		t.Error("C-ECHO response must not carry a data set")
	}
	if gotMeta.CallingAETitle != "MODALITY" || gotMeta.CalledAETitle != "WORKLIST" || gotMeta.TransferSyntax != types.ImplicitVRLittleEndian {
		t.Errorf("meta = %+v", gotMeta)
	}
}

func TestService_FragmentedFindStreamsResponses(t *testing.T) {
	identifier := dicom.NewDataset()
	identifier.AddString(dicom.PatientID, "12345")
	identifier.AddString(dicom.PatientName, "")
	data, err := dicom.EncodeDatasetWithTransferSyntax(identifier, types.ExplicitVRLittleEndian)
	if err != nil {
		t.Fatal(err)
	}

	handler := &MockServiceHandler{
		HandleFunc: func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
			if got := data.GetString(dicom.PatientID); got != "12345" {
				t.Errorf("PatientID = %q", got)
			}
			for _, name := range []string{"Test^Hilbert", "Miller^Albert"} {
				match := dicom.NewDataset()
				match.AddString(dicom.PatientName, name)
				pending := successFor(msg)
				pending.Status = types.StatusPending
				if err := responder.SendResponse(pending, match); err != nil {
					return err
				}
			}
			return responder.SendResponse(successFor(msg), nil)
		},
	}
	layer := &MockPDULayer{TransferSyntaxUID: types.ExplicitVRLittleEndian}
	service := NewService(handler, zerolog.Nop())

	req := &types.Message{CommandField: types.CFindRQ, MessageID: 2, AffectedSOPClassUID: types.ModalityWorklistInformationFind, CommandDataSetType: types.DataSetPresent}
	if err := deliver(t, service, layer, req, data, 24); err != nil {
		t.Fatalf("HandleDIMSEMessage() error = %v", err)
	}

	if handler.Calls != 1 {
		t.Fatalf("handler called %d times", handler.Calls)
	}
	if len(layer.Sent) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(layer.Sent))
	}
	for i, s := range layer.Sent[:2] {
		if s.command.Status != types.StatusPending || !s.command.HasDataset() {
			t.Errorf("response %d = %+v", i, s.command)
		}
		ds, err := dicom.ParseDatasetWithTransferSyntax(s.dataset, types.ExplicitVRLittleEndian)
		if err != nil {
			t.Fatalf("response %d data set: %v", i, err)
		}
		if ds.GetString(dicom.PatientName) == "" {
			t.Errorf("response %d missing PatientName", i)
		}
	}
	if final := layer.Sent[2].command; final.Status != types.StatusSuccess || final.HasDataset() {
		t.Errorf("final response = %+v", final)
	}
}

func TestService_EmptyDatasetStillSent(t *testing.T) {
	handler := &MockServiceHandler{
		HandleFunc: func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
			return responder.SendResponse(successFor(msg), dicom.NewDataset())
		},
	}
	layer := &MockPDULayer{TransferSyntaxUID: types.ExplicitVRLittleEndian}
	req := &types.Message{CommandField: types.NCreateRQ, MessageID: 3, CommandDataSetType: types.DataSetPresent}
	if err := deliver(t, NewService(handler, zerolog.Nop()), layer, req, []byte{}, 0); err != nil {
		t.Fatal(err)
	}
	if len(layer.Sent) != 1 || layer.Sent[0].dataset == nil || !layer.Sent[0].command.HasDataset() {
		t.Errorf("expected an empty data set PDV, got %+v", layer.Sent)
	}
}

func TestService_FailureResponses(t *testing.T) {
	tests := []struct {
		name       string
		req        *types.Message
		data       []byte
		handlerErr error
		noResponse bool
		wantStatus uint16
		wantCalls  int
	}{
		{
			name:       "C-FIND handler error",
			req:        &types.Message{CommandField: types.CFindRQ, MessageID: 4, CommandDataSetType: types.DataSetPresent},
			data:       []byte{},
			handlerErr: errors.New("source unavailable"),
			wantStatus: types.StatusFailure,
			wantCalls:  1,
		},
		{
			name:       "N-SET handler error",
			req:        &types.Message{CommandField: types.NSetRQ, MessageID: 5, CommandDataSetType: types.DataSetPresent},
			data:       []byte{},
			handlerErr: errors.New("store unavailable"),
			wantStatus: types.StatusProcessingFailure,
			wantCalls:  1,
		},
		{
			name:       "invalid data set",
			req:        &types.Message{CommandField: types.CFindRQ, MessageID: 6, CommandDataSetType: types.DataSetPresent},
			data:       []byte{0x10, 0x00, 0x10},
			wantStatus: types.StatusFailure,
			wantCalls:  0,
		},
		{
			name:       "handler sent nothing",
			req:        &types.Message{CommandField: types.CEchoRQ, MessageID: 7, CommandDataSetType: types.NoDataSet},
			noResponse: true,
			wantStatus: types.StatusFailure,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &MockServiceHandler{
				HandleFunc: func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
					if tt.noResponse {
						return nil
					}
					return tt.handlerErr
				},
			}
			layer := &MockPDULayer{TransferSyntaxUID: types.ExplicitVRLittleEndian}
			if err := deliver(t, NewService(handler, zerolog.Nop()), layer, tt.req, tt.data, 0); err != nil {
				t.Fatalf("association must survive, got error %v", err)
			}
			if handler.Calls != tt.wantCalls {
				t.Errorf("handler calls = %d, want %d", handler.Calls, tt.wantCalls)
			}
			if len(layer.Sent) != 1 {
				t.Fatalf("expected 1 response, got %d", len(layer.Sent))
			}
			resp := layer.Sent[0].command
			if resp.Status != tt.wantStatus || resp.MessageIDBeingRespondedTo != tt.req.MessageID {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestService_SendErrorEndsAssociation(t *testing.T) {
	sendErr := errors.New("broken pipe")
	handler := &MockServiceHandler{
		HandleFunc: func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
			// Handlers may swallow the error; the service still reports it.
			_ = responder.SendResponse(successFor(msg), nil)
			return nil
		},
	}
	layer := &MockPDULayer{TransferSyntaxUID: types.ExplicitVRLittleEndian, SendErr: sendErr}
	req := &types.Message{CommandField: types.CEchoRQ, MessageID: 8, CommandDataSetType: types.NoDataSet}
	if err := deliver(t, NewService(handler, zerolog.Nop()), layer, req, nil, 0); !errors.Is(err, sendErr) {
		t.Errorf("HandleDIMSEMessage() error = %v, want %v", err, sendErr)
	}
}

func TestService_CancelIsNotAnswered(t *testing.T) {
	handler := &MockServiceHandler{
		HandleFunc: func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
			return responder.SendResponse(successFor(msg), nil)
		},
	}
	layer := &MockPDULayer{TransferSyntaxUID: types.ImplicitVRLittleEndian}
	service := NewService(handler, zerolog.Nop())

	cancel := &types.Message{CommandField: types.CCancelRQ, MessageIDBeingRespondedTo: 3, CommandDataSetType: types.NoDataSet}
	if err := deliver(t, service, layer, cancel, nil, 0); err != nil {
		t.Fatalf("HandleDIMSEMessage() error = %v", err)
	}
	if handler.Calls != 0 {
		t.Errorf("handler called %d times for C-CANCEL", handler.Calls)
	}
	if len(layer.Sent) != 0 {
		t.Fatalf("C-CANCEL answered with %+v", layer.Sent[0].command)
	}

	// The association carries on with the next request.
	echo := &types.Message{CommandField: types.CEchoRQ, MessageID: 4, CommandDataSetType: types.NoDataSet}
	if err := deliver(t, service, layer, echo, nil, 0); err != nil {
		t.Fatalf("HandleDIMSEMessage() error = %v", err)
	}
	if len(layer.Sent) != 1 || layer.Sent[0].command.MessageIDBeingRespondedTo != 4 {
		t.Errorf("responses after cancel = %+v", layer.Sent)
	}
}

func TestService_ResponseAfterFinalRejected(t *testing.T) {
	var secondErr error
	handler := &MockServiceHandler{
		HandleFunc: func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
			if err := responder.SendResponse(successFor(msg), nil); err != nil {
				return err
			}
			secondErr = responder.SendResponse(successFor(msg), nil)
			return nil
		},
	}
	layer := &MockPDULayer{TransferSyntaxUID: types.ExplicitVRLittleEndian}
	req := &types.Message{CommandField: types.CEchoRQ, MessageID: 9, CommandDataSetType: types.NoDataSet}
	if err := deliver(t, NewService(handler, zerolog.Nop()), layer, req, nil, 0); err != nil {
		t.Fatal(err)
	}
	if secondErr == nil || len(layer.Sent) != 1 {
		t.Errorf("second final response: err = %v, sent = %d", secondErr, len(layer.Sent))
	}
}

func TestService_ProtocolErrors(t *testing.T) {
	handler := &MockServiceHandler{
		HandleFunc: func(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
			return responder.SendResponse(successFor(msg), nil)
		},
	}
	layer := &MockPDULayer{TransferSyntaxUID: types.ExplicitVRLittleEndian}
	ctx := context.Background()

	t.Run("data set without command", func(t *testing.T) {
		s := NewService(handler, zerolog.Nop())
		err := s.HandleDIMSEMessage(ctx, 1, types.PDVLastFragment, []byte{}, layer)
		if !errors.Is(err, dicomerrors.ErrInvalidMessage) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("context switch mid message", func(t *testing.T) {
		s := NewService(handler, zerolog.Nop())
		cmd := EncodeCommand(&types.Message{CommandField: types.CFindRQ, MessageID: 1, CommandDataSetType: types.DataSetPresent})
		if err := s.HandleDIMSEMessage(ctx, 1, types.PDVCommand|types.PDVLastFragment, cmd, layer); err != nil {
			t.Fatal(err)
		}
		err := s.HandleDIMSEMessage(ctx, 3, types.PDVLastFragment, []byte{}, layer)
		if !errors.Is(err, dicomerrors.ErrInvalidMessage) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("garbage command", func(t *testing.T) {
		s := NewService(handler, zerolog.Nop())
		err := s.HandleDIMSEMessage(ctx, 1, types.PDVCommand|types.PDVLastFragment, []byte{0x01}, layer)
		if !errors.Is(err, dicomerrors.ErrInvalidMessage) {
			t.Errorf("error = %v", err)
		}
	})
}
