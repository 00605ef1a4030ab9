package client

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/dimse"
	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/pdu"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// mockConn implements net.Conn for testing
type mockConn struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
}

func newMockConn() *mockConn {
	return &mockConn{
		readBuf:  new(bytes.Buffer),
		writeBuf: new(bytes.Buffer),
	}
}

func (m *mockConn) Read(b []byte) (n int, err error) {
	if m.closed {
		return 0, io.EOF
	}
	return m.readBuf.Read(b)
}

func (m *mockConn) Write(b []byte) (n int, err error) {
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	return m.writeBuf.Write(b)
}

func (m *mockConn) Close() error {
	m.closed = true
	return nil
}

func (m *mockConn) LocalAddr() net.Addr                { return nil }
func (m *mockConn) RemoteAddr() net.Addr               { return nil }
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

// newTestAssociation returns an association over conn with the worklist
// contexts accepted: 1 verification, 3 MWL, 5 MPPS.
func newTestAssociation(conn net.Conn) *Association {
	return &Association{
		conn:             conn,
		callingAETitle:   "TEST_SCU",
		calledAETitle:    "TEST_SCP",
		maxPDULength:     16384,
		peerMaxPDULength: 16384,
		presentationCtxs: map[byte]*PresentationContext{
			1: {ID: 1, AbstractSyntax: types.VerificationSOPClass, TransferSyntax: types.ImplicitVRLittleEndian, Accepted: true},
			3: {ID: 3, AbstractSyntax: types.ModalityWorklistInformationFind, TransferSyntax: types.ExplicitVRLittleEndian, Accepted: true},
			5: {ID: 5, AbstractSyntax: types.ModalityPerformedProcedureStep, TransferSyntax: types.ExplicitVRLittleEndian, Accepted: true},
		},
		logger: zerolog.Nop(),
	}
}

// queueResponse appends a response message to what the association will read.
func queueResponse(t *testing.T, conn *mockConn, contextID byte, transferSyntax string, msg *types.Message, ds *dicom.Dataset) {
	t.Helper()
	var payload []byte
	msg.CommandDataSetType = types.NoDataSet
	if ds != nil {
		encoded, err := dicom.EncodeDatasetWithTransferSyntax(ds, transferSyntax)
		if err != nil {
			t.Fatalf("encode response data set: %v", err)
		}
		payload = append([]byte{}, encoded...)
		msg.CommandDataSetType = types.DataSetPresent
	}
	if err := pdu.WriteMessage(conn.readBuf, contextID, dimse.EncodeCommand(msg), payload, 64); err != nil {
		t.Fatalf("queue response: %v", err)
	}
}

type sentMessage struct {
	contextID byte
	msg       *types.Message
	dataset   []byte
}

// sentMessages decodes every DIMSE message the association wrote.
func sentMessages(t *testing.T, conn *mockConn) []sentMessage {
	t.Helper()
	r := bytes.NewReader(conn.writeBuf.Bytes())
	var (
		asm  dimse.Assembler
		sent []sentMessage
	)
	for {
		p, err := pdu.ReadPDU(r)
		if errors.Is(err, io.EOF) {
			return sent
		}
		if err != nil {
			t.Fatalf("read sent PDU: %v", err)
		}
		if p.Type != pdu.TypePDataTF {
			continue
		}
		pdvs, err := pdu.ParsePDataTF(p.Data)
		if err != nil {
			t.Fatalf("parse sent PDU: %v", err)
		}
		for _, pdv := range pdvs {
			complete, err := asm.Add(pdv.ContextID, pdv.Control, pdv.Data)
			if err != nil {
				t.Fatalf("assemble sent message: %v", err)
			}
			if complete {
				id, msg, ds := asm.Take()
				sent = append(sent, sentMessage{contextID: id, msg: msg, dataset: ds})
			}
		}
	}
}

// fakeSCP accepts one connection on a loopback listener and answers the
// association request with reply.
func fakeSCP(t *testing.T, reply func(rq *pdu.AssociateRQ) (byte, []byte)) (string, <-chan *pdu.AssociateRQ) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	requests := make(chan *pdu.AssociateRQ, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		p, err := pdu.ReadPDU(conn)
		if err != nil || p.Type != pdu.TypeAssociateRQ {
			return
		}
		rq, err := pdu.ParseAssociateRQ(p.Data)
		if err != nil {
			return
		}
		requests <- rq

		pduType, body := reply(rq)
		if err := pdu.WritePDU(conn, pduType, body); err != nil {
			return
		}
		for {
			p, err := pdu.ReadPDU(conn)
			if err != nil {
				return
			}
			if p.Type == pdu.TypeReleaseRQ {
				pdu.WritePDU(conn, pdu.TypeReleaseRP, pdu.ReleaseBody())
				return
			}
		}
	}()
	return ln.Addr().String(), requests
}

func TestConnectNegotiatesContexts(t *testing.T) {
	addr, requests := fakeSCP(t, func(rq *pdu.AssociateRQ) (byte, []byte) {
		ac := &pdu.AssociateAC{
			CalledAETitle:  rq.CalledAETitle,
			CallingAETitle: rq.CallingAETitle,
			// MPPS is not offered by this SCP.
			Contexts:     pdu.Negotiate(rq.Contexts, []string{types.VerificationSOPClass, types.ModalityWorklistInformationFind}, []string{types.ImplicitVRLittleEndian}),
			MaxPDULength: 4096,
		}
		return pdu.TypeAssociateAC, ac.Encode()
	})

	assoc, err := Connect(addr, Config{
		CallingAETitle: "MODALITY",
		CalledAETitle:  "WORKLIST",
		ReadTimeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	rq := <-requests
	if rq.CallingAETitle != "MODALITY" || rq.CalledAETitle != "WORKLIST" {
		t.Errorf("AE titles = %q/%q, want MODALITY/WORKLIST", rq.CallingAETitle, rq.CalledAETitle)
	}
	if len(rq.Contexts) != 3 {
		t.Fatalf("proposed %d contexts, want 3", len(rq.Contexts))
	}
	for i, pc := range rq.Contexts {
		if want := byte(2*i + 1); pc.ID != want {
			t.Errorf("context %d ID = %d, want %d", i, pc.ID, want)
		}
		if len(pc.TransferSyntaxes) != 2 || pc.TransferSyntaxes[0] != types.ExplicitVRLittleEndian {
			t.Errorf("context %d transfer syntaxes = %v", pc.ID, pc.TransferSyntaxes)
		}
	}

	if assoc.peerMaxPDULength != 4096 {
		t.Errorf("peer max PDU = %d, want 4096", assoc.peerMaxPDULength)
	}
	id, err := assoc.GetPresentationContextID(types.ModalityWorklistInformationFind)
	if err != nil {
		t.Fatalf("MWL context not accepted: %v", err)
	}
	if ts := assoc.presentationCtxs[id].TransferSyntax; ts != types.ImplicitVRLittleEndian {
		t.Errorf("MWL transfer syntax = %s, want implicit VR", ts)
	}
	if _, err := assoc.GetPresentationContextID(types.ModalityPerformedProcedureStep); !errors.Is(err, dicomerrors.ErrNoPresentationCtx) {
		t.Errorf("MPPS context error = %v, want ErrNoPresentationCtx", err)
	}

	if err := assoc.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestConnectRejected(t *testing.T) {
	addr, _ := fakeSCP(t, func(rq *pdu.AssociateRQ) (byte, []byte) {
		rj := pdu.AssociateRJ{
			Result: types.RejectPermanent,
			Source: types.RejectSourceServiceUser,
			Reason: types.RejectReasonCalledAENotRecognized,
		}
		return pdu.TypeAssociateRJ, rj.Encode()
	})

	_, err := Connect(addr, Config{CallingAETitle: "MODALITY", CalledAETitle: "WRONG", ReadTimeout: 5 * time.Second})
	if !errors.Is(err, dicomerrors.ErrAssociationRejected) {
		t.Fatalf("error = %v, want ErrAssociationRejected", err)
	}
	var assocErr *dicomerrors.AssociationError
	if !errors.As(err, &assocErr) {
		t.Fatalf("error %v does not carry an AssociationError", err)
	}
	if assocErr.Reason != dicomerrors.RejectReasonCalledAETitleNotRecognized {
		t.Errorf("reason = %s, want called-ae-title-not-recognized", assocErr.Reason)
	}
}

func TestConnectAborted(t *testing.T) {
	addr, _ := fakeSCP(t, func(rq *pdu.AssociateRQ) (byte, []byte) {
		return pdu.TypeAbort, pdu.Abort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU}.Encode()
	})

	_, err := Connect(addr, Config{ReadTimeout: 5 * time.Second})
	var abortErr *dicomerrors.AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("error = %v, want AbortError", err)
	}
	if abortErr.Reason != pdu.AbortReasonUnexpectedPDU {
		t.Errorf("abort reason = %d, want %d", abortErr.Reason, pdu.AbortReasonUnexpectedPDU)
	}
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Connect(addr, Config{ConnectTimeout: time.Second})
	var netErr *dicomerrors.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
}

func TestConnectUnsupportedTransferSyntax(t *testing.T) {
	_, err := Connect("127.0.0.1:1", Config{
		PreferredTransferSyntaxes: []string{types.ExplicitVRBigEndian},
	})
	if !errors.Is(err, dicomerrors.ErrUnsupportedTransfer) {
		t.Fatalf("error = %v, want ErrUnsupportedTransfer", err)
	}
}

func TestMessageIDsIncrease(t *testing.T) {
	assoc := newTestAssociation(newMockConn())
	first := assoc.messageID()
	second := assoc.messageID()
	if first != 1 || second != 2 {
		t.Errorf("message IDs = %d, %d, want 1, 2", first, second)
	}

	assoc.nextMessageID = 0xFFFF
	if id := assoc.messageID(); id != 1 {
		t.Errorf("message ID after wrap = %d, want 1", id)
	}
}

func TestCloseSendsRelease(t *testing.T) {
	conn := newMockConn()
	pdu.WritePDU(conn.readBuf, pdu.TypeReleaseRP, pdu.ReleaseBody())
	assoc := newTestAssociation(conn)

	if err := assoc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !conn.closed {
		t.Error("connection not closed")
	}
	p, err := pdu.ReadPDU(conn.writeBuf)
	if err != nil {
		t.Fatalf("read release: %v", err)
	}
	if p.Type != pdu.TypeReleaseRQ {
		t.Errorf("sent PDU type = 0x%02X, want A-RELEASE-RQ", p.Type)
	}
}

func TestAbortSendsAbort(t *testing.T) {
	conn := newMockConn()
	assoc := newTestAssociation(conn)

	if err := assoc.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	p, err := pdu.ReadPDU(conn.writeBuf)
	if err != nil {
		t.Fatalf("read abort: %v", err)
	}
	if p.Type != pdu.TypeAbort {
		t.Errorf("sent PDU type = 0x%02X, want A-ABORT", p.Type)
	}
	if abort := pdu.ParseAbort(p.Data); abort.Source != pdu.AbortSourceServiceUser {
		t.Errorf("abort source = %d, want service user", abort.Source)
	}
}

func TestReceivePeerAbort(t *testing.T) {
	conn := newMockConn()
	pdu.WritePDU(conn.readBuf, pdu.TypeAbort, pdu.Abort{Source: pdu.AbortSourceServiceProvider}.Encode())
	assoc := newTestAssociation(conn)

	_, err := assoc.SendCEcho(1)
	var abortErr *dicomerrors.AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("error = %v, want AbortError", err)
	}
	if !conn.closed {
		t.Error("connection should be closed after peer abort")
	}
}

func TestReceiveUnexpectedPDU(t *testing.T) {
	conn := newMockConn()
	pdu.WritePDU(conn.readBuf, pdu.TypeAssociateAC, []byte{0x00})
	assoc := newTestAssociation(conn)

	_, err := assoc.SendCEcho(1)
	var pduErr *dicomerrors.PDUError
	if !errors.As(err, &pduErr) {
		t.Fatalf("error = %v, want PDUError", err)
	}
}

func TestSendOnUnnegotiatedContext(t *testing.T) {
	conn := newMockConn()
	assoc := newTestAssociation(conn)
	delete(assoc.presentationCtxs, 5)

	_, err := assoc.CreateProcedureStep("1.2.3", dicom.NewDataset())
	if !errors.Is(err, dicomerrors.ErrNoPresentationCtx) {
		t.Fatalf("error = %v, want ErrNoPresentationCtx", err)
	}
	if conn.writeBuf.Len() != 0 {
		t.Error("nothing should be written without a presentation context")
	}
}

func TestLargeRequestIsFragmented(t *testing.T) {
	conn := newMockConn()
	assoc := newTestAssociation(conn)
	assoc.peerMaxPDULength = 64

	query := NewWorklistQuery(WorklistFilter{Modality: "CT"})
	final := &types.Message{
		CommandField:              types.CFindRSP,
		MessageIDBeingRespondedTo: 1,
		AffectedSOPClassUID:       types.ModalityWorklistInformationFind,
		Status:                    types.StatusSuccess,
	}
	queueResponse(t, conn, 3, types.ExplicitVRLittleEndian, final, nil)

	if _, err := assoc.FindWorklist(query); err != nil {
		t.Fatalf("FindWorklist failed: %v", err)
	}

	r := bytes.NewReader(conn.writeBuf.Bytes())
	count := 0
	for {
		p, err := pdu.ReadPDU(r)
		if err != nil {
			break
		}
		if len(p.Data) > 64 {
			t.Errorf("P-DATA-TF body %d bytes exceeds peer maximum", len(p.Data))
		}
		count++
	}
	if count < 3 {
		t.Errorf("sent %d PDUs, expected the request to be fragmented", count)
	}

	sent := sentMessages(t, conn)
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	ds, err := dicom.ParseDatasetWithTransferSyntax(sent[0].dataset, types.ExplicitVRLittleEndian)
	if err != nil {
		t.Fatalf("parse sent identifier: %v", err)
	}
	if got := ds.FirstItem(dicom.ScheduledProcedureStepSequence).GetString(dicom.Modality); got != "CT" {
		t.Errorf("sent modality = %q, want CT", got)
	}
}
