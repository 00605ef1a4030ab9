// Package client implements the SCU side of the worklist protocol: association
// negotiation, verification, worklist queries and MPPS notifications.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/dimse"
	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/pdu"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// Association represents a client-side DICOM association
type Association struct {
	conn             net.Conn
	callingAETitle   string
	calledAETitle    string
	maxPDULength     uint32
	peerMaxPDULength uint32
	presentationCtxs map[byte]*PresentationContext
	readTimeout      time.Duration
	writeTimeout     time.Duration
	logger           zerolog.Logger
	nextMessageID    uint16
}

// PresentationContext holds negotiated presentation context info
type PresentationContext struct {
	ID             byte
	AbstractSyntax string
	TransferSyntax string
	Accepted       bool
}

// Config holds client configuration
type Config struct {
	CallingAETitle            string
	CalledAETitle             string
	MaxPDULength              uint32
	ConnectTimeout            time.Duration  // Timeout for establishing connection (default: 30s)
	ReadTimeout               time.Duration  // Timeout for each read (default: 60s)
	WriteTimeout              time.Duration  // Timeout for each write (default: 60s)
	Logger                    zerolog.Logger // Logger for the association (default: disabled)
	AbstractSyntaxes          []string       // SOP classes to propose (default: verification, MWL, MPPS)
	PreferredTransferSyntaxes []string       // Transfer syntaxes to propose (default: Explicit VR, Implicit VR)
}

// Connect establishes a DICOM association with a remote SCP
func Connect(address string, config Config) (*Association, error) {
	return ConnectContext(context.Background(), address, config)
}

// ConnectContext is Connect with a context bounding the dial and the
// association handshake.
func ConnectContext(ctx context.Context, address string, config Config) (*Association, error) {
	if config.MaxPDULength == 0 {
		config.MaxPDULength = types.DefaultMaxPDULength
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 60 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 60 * time.Second
	}
	if len(config.AbstractSyntaxes) == 0 {
		config.AbstractSyntaxes = types.WorklistSOPClasses()
	}
	if len(config.PreferredTransferSyntaxes) == 0 {
		config.PreferredTransferSyntaxes = types.SupportedTransferSyntaxes()
	}

	for _, ts := range config.PreferredTransferSyntaxes {
		if !types.IsSupportedTransferSyntax(ts) {
			return nil, fmt.Errorf("%w: %s", dicomerrors.ErrUnsupportedTransfer, ts)
		}
	}

	dialer := &net.Dialer{Timeout: config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, dicomerrors.NewNetworkError("connect", err)
	}

	assoc := newAssociation(conn, config)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	err = assoc.negotiate(config)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", dicomerrors.ErrOperationCanceled, ctx.Err())
		}
		return nil, err
	}

	assoc.logger.Info().
		Str("remote_addr", address).
		Str("calling_ae", config.CallingAETitle).
		Str("called_ae", config.CalledAETitle).
		Uint32("peer_max_pdu", assoc.peerMaxPDULength).
		Msg("DICOM association established")

	return assoc, nil
}

func newAssociation(conn net.Conn, config Config) *Association {
	return &Association{
		conn:             conn,
		callingAETitle:   config.CallingAETitle,
		calledAETitle:    config.CalledAETitle,
		maxPDULength:     config.MaxPDULength,
		presentationCtxs: make(map[byte]*PresentationContext),
		readTimeout:      config.ReadTimeout,
		writeTimeout:     config.WriteTimeout,
		logger:           config.Logger,
	}
}

// negotiate sends the A-ASSOCIATE-RQ and records which contexts the SCP
// accepted. Context IDs are the odd numbers 1, 3, 5... in proposal order.
func (a *Association) negotiate(config Config) error {
	rq := &pdu.AssociateRQ{
		CalledAETitle:          config.CalledAETitle,
		CallingAETitle:         config.CallingAETitle,
		MaxPDULength:           config.MaxPDULength,
		ImplementationClassUID: pdu.ImplementationClassUID,
		ImplementationVersion:  pdu.ImplementationVersion,
	}
	for i, abstractSyntax := range config.AbstractSyntaxes {
		id := byte(2*i + 1)
		rq.Contexts = append(rq.Contexts, pdu.ProposedContext{
			ID:               id,
			AbstractSyntax:   abstractSyntax,
			TransferSyntaxes: config.PreferredTransferSyntaxes,
		})
		a.presentationCtxs[id] = &PresentationContext{ID: id, AbstractSyntax: abstractSyntax}
	}

	if err := a.writePDU(pdu.TypeAssociateRQ, rq.Encode()); err != nil {
		return fmt.Errorf("failed to send A-ASSOCIATE-RQ: %w", err)
	}

	a.setReadDeadline()
	reply, err := pdu.ReadPDU(a.conn)
	if err != nil {
		return dicomerrors.NewNetworkError("receive A-ASSOCIATE-AC", err)
	}

	switch reply.Type {
	case pdu.TypeAssociateAC:
	case pdu.TypeAssociateRJ:
		rj, err := pdu.ParseAssociateRJ(reply.Data)
		if err != nil {
			return err
		}
		return dicomerrors.NewAssociationError(
			dicomerrors.AssociationRejectSource(rj.Source),
			dicomerrors.AssociationRejectReason(rj.Reason),
			fmt.Sprintf("called AE %q", config.CalledAETitle))
	case pdu.TypeAbort:
		abort := pdu.ParseAbort(reply.Data)
		return dicomerrors.NewAbortError(abort.Source, abort.Reason)
	default:
		return dicomerrors.NewPDUError(reply.Type, "expected A-ASSOCIATE-AC")
	}

	ac, err := pdu.ParseAssociateAC(reply.Data)
	if err != nil {
		return err
	}
	a.peerMaxPDULength = ac.MaxPDULength

	for _, result := range ac.Contexts {
		pc, ok := a.presentationCtxs[result.ID]
		if !ok {
			continue
		}
		pc.Accepted = result.Result == types.ContextAccepted
		if pc.Accepted {
			pc.TransferSyntax = result.TransferSyntax
		}
		a.logger.Debug().
			Uint8("context_id", pc.ID).
			Str("abstract_syntax", pc.AbstractSyntax).
			Str("sop_class", types.GetSOPClassInfo(pc.AbstractSyntax).Name).
			Uint8("result", result.Result).
			Bool("accepted", pc.Accepted).
			Str("transfer_syntax", pc.TransferSyntax).
			Msg("Presentation context negotiation")
	}
	return nil
}

// Close gracefully releases the association
func (a *Association) Close() error {
	if err := a.writePDU(pdu.TypeReleaseRQ, pdu.ReleaseBody()); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to send release request")
		return a.conn.Close()
	}

	if err := a.receiveReleaseRP(); err != nil {
		a.logger.Debug().Err(err).Msg("No release response")
	}
	return a.conn.Close()
}

// Abort tears the association down without a release handshake.
func (a *Association) Abort() error {
	abort := pdu.Abort{Source: pdu.AbortSourceServiceUser, Reason: pdu.AbortReasonNotSpecified}
	if err := a.writePDU(pdu.TypeAbort, abort.Encode()); err != nil {
		a.logger.Debug().Err(err).Msg("Failed to send abort")
	}
	return a.conn.Close()
}

// receiveReleaseRP waits for A-RELEASE-RP, skipping any late P-DATA-TF.
func (a *Association) receiveReleaseRP() error {
	for {
		a.setReadDeadline()
		p, err := pdu.ReadPDU(a.conn)
		if err != nil {
			return err
		}
		switch p.Type {
		case pdu.TypeReleaseRP:
			return nil
		case pdu.TypePDataTF:
			continue
		default:
			return dicomerrors.NewPDUError(p.Type, "expected A-RELEASE-RP")
		}
	}
}

// GetPresentationContextID finds a presentation context for the given abstract syntax
func (a *Association) GetPresentationContextID(abstractSyntax string) (byte, error) {
	for _, pc := range a.presentationCtxs {
		if pc.AbstractSyntax == abstractSyntax && pc.Accepted {
			return pc.ID, nil
		}
	}
	return 0, fmt.Errorf("%w for abstract syntax %s", dicomerrors.ErrNoPresentationCtx, abstractSyntax)
}

// messageID returns the next message ID, skipping zero on wrap.
func (a *Association) messageID() uint16 {
	a.nextMessageID++
	if a.nextMessageID == 0 {
		a.nextMessageID = 1
	}
	return a.nextMessageID
}

func (a *Association) setReadDeadline() {
	if a.readTimeout > 0 {
		a.conn.SetReadDeadline(time.Now().Add(a.readTimeout))
	}
}

func (a *Association) setWriteDeadline() {
	if a.writeTimeout > 0 {
		a.conn.SetWriteDeadline(time.Now().Add(a.writeTimeout))
	}
}

func (a *Association) writePDU(pduType byte, data []byte) error {
	a.setWriteDeadline()
	if err := pdu.WritePDU(a.conn, pduType, data); err != nil {
		return dicomerrors.NewNetworkError("write", err)
	}
	return nil
}

// sendDIMSEMessage encodes msg and an optional data set on the context
// negotiated for abstractSyntax.
func (a *Association) sendDIMSEMessage(abstractSyntax string, msg *types.Message, data *dicom.Dataset) error {
	presContextID, err := a.GetPresentationContextID(abstractSyntax)
	if err != nil {
		return err
	}
	pc := a.presentationCtxs[presContextID]

	var payload []byte
	msg.CommandDataSetType = types.NoDataSet
	if data != nil {
		payload, err = dicom.EncodeDatasetWithTransferSyntax(data, pc.TransferSyntax)
		if err != nil {
			return fmt.Errorf("failed to encode data set: %w", err)
		}
		if payload == nil {
			payload = []byte{}
		}
		msg.CommandDataSetType = types.DataSetPresent
	}

	a.logger.Debug().
		Str("command", types.CommandName(msg.CommandField)).
		Uint16("message_id", msg.MessageID).
		Uint8("context_id", presContextID).
		Int("dataset_size", len(payload)).
		Msg("Sending DIMSE request")

	a.setWriteDeadline()
	if err := pdu.WriteMessage(a.conn, presContextID, dimse.EncodeCommand(msg), payload, a.peerMaxPDULength); err != nil {
		return dicomerrors.NewNetworkError("send "+types.CommandName(msg.CommandField), err)
	}
	return nil
}

// receiveDIMSEMessage reads PDUs until one complete response has arrived and
// decodes its data set, if any, with the context's transfer syntax.
func (a *Association) receiveDIMSEMessage() (*types.Message, *dicom.Dataset, error) {
	var asm dimse.Assembler
	for {
		a.setReadDeadline()
		p, err := pdu.ReadPDU(a.conn)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, nil, dicomerrors.NewTimeoutError("receive DIMSE response", a.readTimeout.String())
			}
			return nil, nil, dicomerrors.NewNetworkError("receive", err)
		}

		switch p.Type {
		case pdu.TypePDataTF:
		case pdu.TypeAbort:
			abort := pdu.ParseAbort(p.Data)
			a.conn.Close()
			return nil, nil, dicomerrors.NewAbortError(abort.Source, abort.Reason)
		case pdu.TypeReleaseRQ:
			a.writePDU(pdu.TypeReleaseRP, pdu.ReleaseBody())
			a.conn.Close()
			return nil, nil, dicomerrors.ErrConnectionClosed
		default:
			return nil, nil, dicomerrors.NewPDUError(p.Type, "unexpected PDU while awaiting response")
		}

		pdvs, err := pdu.ParsePDataTF(p.Data)
		if err != nil {
			return nil, nil, err
		}
		for i, pdv := range pdvs {
			complete, err := asm.Add(pdv.ContextID, pdv.Control, pdv.Data)
			if err != nil {
				return nil, nil, err
			}
			if !complete {
				continue
			}
			if i != len(pdvs)-1 {
				return nil, nil, fmt.Errorf("%w: PDVs after a complete message", dicomerrors.ErrInvalidMessage)
			}
			return a.decodeResponse(asm.Take())
		}
	}
}

func (a *Association) decodeResponse(contextID byte, msg *types.Message, data []byte) (*types.Message, *dicom.Dataset, error) {
	if !msg.HasDataset() {
		return msg, nil, nil
	}
	pc, ok := a.presentationCtxs[contextID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: response on unknown context %d", dicomerrors.ErrNoPresentationCtx, contextID)
	}
	ds, err := dicom.ParseDatasetWithTransferSyntax(data, pc.TransferSyntax)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s data set: %w", types.CommandName(msg.CommandField), err)
	}
	return msg, ds, nil
}

// expectResponse checks that msg is the response to the given request.
func expectResponse(request uint16, messageID uint16, msg *types.Message) error {
	want := types.ResponseCommandFor(request)
	if msg.CommandField != want {
		return fmt.Errorf("%w: got %s, want %s", dicomerrors.ErrInvalidMessage,
			types.CommandName(msg.CommandField), types.CommandName(want))
	}
	if msg.MessageIDBeingRespondedTo != messageID {
		return fmt.Errorf("%w: response to message %d, want %d", dicomerrors.ErrInvalidMessage,
			msg.MessageIDBeingRespondedTo, messageID)
	}
	return nil
}
