package pdu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/interfaces"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// Config controls association acceptance.
type Config struct {
	AETitle string
	// StrictCalledAE rejects associations whose called AE title differs from AETitle.
	StrictCalledAE bool
	// MaxPDULength is advertised to the peer as the largest PDU we accept.
	MaxPDULength uint32
	// ReadTimeout bounds the wait for each incoming PDU.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AbstractSyntaxes defaults to the worklist SOP classes.
	AbstractSyntaxes []string
	// TransferSyntaxes lists accepted transfer syntaxes in order of preference.
	TransferSyntaxes []string
}

// Layer handles the DICOM upper layer protocol for one accepted connection.
type Layer struct {
	conn           net.Conn
	cfg            Config
	dimseHandler   interfaces.DIMSEHandler
	associationCtx *types.AssociationContext
	logger         zerolog.Logger
}

// NewLayer creates a PDU layer handler for conn.
func NewLayer(conn net.Conn, dimseHandler interfaces.DIMSEHandler, cfg Config, logger zerolog.Logger) *Layer {
	if cfg.MaxPDULength == 0 {
		cfg.MaxPDULength = types.DefaultMaxPDULength
	}
	if len(cfg.AbstractSyntaxes) == 0 {
		cfg.AbstractSyntaxes = types.WorklistSOPClasses()
	}
	if len(cfg.TransferSyntaxes) == 0 {
		cfg.TransferSyntaxes = types.SupportedTransferSyntaxes()
	}
	return &Layer{
		conn:         conn,
		cfg:          cfg,
		dimseHandler: dimseHandler,
		logger:       logger,
	}
}

// HandleConnection runs association negotiation and then serves P-DATA until
// the peer releases or aborts, ctx is cancelled, or a protocol error occurs.
// The connection is closed on return.
func (p *Layer) HandleConnection(ctx context.Context) error {
	defer p.conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = p.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := p.handleAssociationPhase(ctx); err != nil {
		return fmt.Errorf("association failed: %w", err)
	}

	p.logger = p.logger.With().
		Str("calling_ae", p.associationCtx.CallingAETitle).
		Str("called_ae", p.associationCtx.CalledAETitle).
		Logger()
	ctx = p.logger.WithContext(ctx)

	for {
		pdu, err := p.readPDU(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				p.abort(AbortSourceServiceProvider, AbortReasonNotSpecified)
				return nil
			case errors.Is(err, io.EOF):
				p.logger.Info().Msg("Connection closed by peer")
				return nil
			}
			var timeout *dicomerrors.TimeoutError
			if errors.As(err, &timeout) {
				p.abort(AbortSourceServiceProvider, AbortReasonNotSpecified)
				return err
			}
			return dicomerrors.NewNetworkError("read", err)
		}

		done, err := p.handlePDU(ctx, pdu)
		if err != nil {
			if ctx.Err() == nil {
				p.abort(AbortSourceServiceProvider, AbortReasonNotSpecified)
			}
			return err
		}
		if done {
			return nil
		}
	}
}

func (p *Layer) readPDU(ctx context.Context) (*types.PDU, error) {
	if p.cfg.ReadTimeout > 0 {
		if err := p.conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout)); err != nil {
			return nil, err
		}
	}
	// A cancellation that raced the deadline reset above must still end the read.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdu, err := ReadPDU(p.conn)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return nil, dicomerrors.NewTimeoutError("read PDU", p.cfg.ReadTimeout.String())
	}
	return pdu, err
}

func (p *Layer) writePDU(pduType byte, data []byte) error {
	if p.cfg.WriteTimeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	return WritePDU(p.conn, pduType, data)
}

// handlePDU routes one PDU. It reports done when the association has ended.
func (p *Layer) handlePDU(ctx context.Context, pdu *types.PDU) (bool, error) {
	switch pdu.Type {
	case TypePDataTF:
		return false, p.handlePDataTF(ctx, pdu)
	case TypeReleaseRQ:
		if err := p.writePDU(TypeReleaseRP, ReleaseBody()); err != nil {
			return true, fmt.Errorf("failed to send A-RELEASE-RP: %w", err)
		}
		p.logger.Debug().Msg("Association released")
		return true, nil
	case TypeAbort:
		a := ParseAbort(pdu.Data)
		p.logger.Info().Uint8("source", a.Source).Uint8("reason", a.Reason).Msg("Received A-ABORT")
		return true, nil
	default:
		return true, dicomerrors.NewPDUError(pdu.Type, "unexpected PDU during data transfer")
	}
}

func (p *Layer) handleAssociationPhase(ctx context.Context) error {
	pdu, err := p.readPDU(ctx)
	if err != nil {
		return fmt.Errorf("failed to read association request: %w", err)
	}
	if pdu.Type != TypeAssociateRQ {
		p.abort(AbortSourceServiceProvider, AbortReasonUnexpectedPDU)
		return dicomerrors.NewPDUError(pdu.Type, "expected A-ASSOCIATE-RQ")
	}

	rq, err := ParseAssociateRQ(pdu.Data)
	if err != nil {
		p.reject(types.RejectReasonNoReason)
		return err
	}

	log := p.logger.With().Str("calling_ae", rq.CallingAETitle).Str("called_ae", rq.CalledAETitle).Logger()

	if rq.ApplicationContext != types.ApplicationContextUID {
		p.reject(types.RejectReasonAppContextNotSupported)
		log.Warn().Str("application_context", rq.ApplicationContext).Msg("Rejected association")
		return dicomerrors.NewAssociationError(dicomerrors.RejectSourceServiceUser,
			dicomerrors.RejectReasonApplicationContextNotSupported, "unsupported application context")
	}
	if p.cfg.StrictCalledAE && rq.CalledAETitle != p.cfg.AETitle {
		p.reject(types.RejectReasonCalledAENotRecognized)
		log.Warn().Str("expected_ae", p.cfg.AETitle).Msg("Rejected association")
		return dicomerrors.NewAssociationError(dicomerrors.RejectSourceServiceUser,
			dicomerrors.RejectReasonCalledAETitleNotRecognized, "called AE title "+rq.CalledAETitle)
	}

	contexts := Negotiate(rq.Contexts, p.cfg.AbstractSyntaxes, p.cfg.TransferSyntaxes)
	p.associationCtx = &types.AssociationContext{
		CalledAETitle:    rq.CalledAETitle,
		CallingAETitle:   rq.CallingAETitle,
		MaxPDULength:     rq.MaxPDULength,
		PresentationCtxs: make(map[byte]*types.PresentationContext, len(contexts)),
	}
	accepted := 0
	for i := range contexts {
		pc := contexts[i]
		p.associationCtx.PresentationCtxs[pc.ID] = &pc
		if pc.Result == types.ContextAccepted {
			accepted++
		}
		log.Debug().
			Uint8("context_id", pc.ID).
			Str("abstract_syntax", pc.AbstractSyntax).
			Str("sop_class", types.GetSOPClassInfo(pc.AbstractSyntax).Name).
			Str("transfer_syntax", transferSyntaxName(pc.TransferSyntax)).
			Uint8("result", pc.Result).
			Msg("Presentation context negotiated")
	}

	ac := &AssociateAC{
		CalledAETitle:  rq.CalledAETitle,
		CallingAETitle: rq.CallingAETitle,
		Contexts:       contexts,
		MaxPDULength:   p.cfg.MaxPDULength,
	}
	if err := p.writePDU(TypeAssociateAC, ac.Encode()); err != nil {
		return fmt.Errorf("failed to send A-ASSOCIATE-AC: %w", err)
	}

	log.Info().
		Int("proposed", len(contexts)).
		Int("accepted", accepted).
		Uint32("peer_max_pdu", rq.MaxPDULength).
		Msg("Association accepted")
	return nil
}

func (p *Layer) handlePDataTF(ctx context.Context, pdu *types.PDU) error {
	pdvs, err := ParsePDataTF(pdu.Data)
	if err != nil {
		return err
	}
	for _, pdv := range pdvs {
		if _, err := p.GetPresentationContext(pdv.ContextID); err != nil {
			return err
		}
		if err := p.dimseHandler.HandleDIMSEMessage(ctx, pdv.ContextID, pdv.Control, pdv.Data, p); err != nil {
			return err
		}
	}
	return nil
}

func (p *Layer) reject(reason byte) {
	rj := AssociateRJ{Result: types.RejectPermanent, Source: types.RejectSourceServiceUser, Reason: reason}
	if err := p.writePDU(TypeAssociateRJ, rj.Encode()); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to send A-ASSOCIATE-RJ")
	}
}

func (p *Layer) abort(source, reason byte) {
	if err := p.writePDU(TypeAbort, Abort{Source: source, Reason: reason}.Encode()); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to send A-ABORT")
	}
}

// SendDIMSEResponseWithDataset sends a command and an optional data set,
// fragmented to the peer's maximum PDU length.
func (p *Layer) SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, datasetData []byte) error {
	if p.cfg.WriteTimeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	if err := WriteMessage(p.conn, presContextID, commandData, datasetData, p.associationCtx.MaxPDULength); err != nil {
		return dicomerrors.NewNetworkError("write", err)
	}
	return nil
}

// GetPresentationContext returns an accepted presentation context.
func (p *Layer) GetPresentationContext(presContextID byte) (*types.PresentationContext, error) {
	if p.associationCtx == nil {
		return nil, fmt.Errorf("association context not initialized")
	}
	pc, ok := p.associationCtx.PresentationCtxs[presContextID]
	if !ok || pc.Result != types.ContextAccepted {
		return nil, fmt.Errorf("%w: %d", dicomerrors.ErrNoPresentationCtx, presContextID)
	}
	return pc, nil
}

// AETitles returns the calling and called AE titles of the association.
func (p *Layer) AETitles() (calling, called string) {
	if p.associationCtx == nil {
		return "", ""
	}
	return p.associationCtx.CallingAETitle, p.associationCtx.CalledAETitle
}

func transferSyntaxName(uid string) string {
	if info := types.GetTransferSyntaxInfo(uid); info != nil {
		return info.Name
	}
	return uid
}
