// Package server accepts DICOM associations and wires each connection's PDU
// and DIMSE layers to a service handler.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/dimse"
	"github.com/caio-sobreiro/dicomworklist/interfaces"
	"github.com/caio-sobreiro/dicomworklist/pdu"
)

// Option configures a Server instance.
type Option func(*Server)

// WithLogger overrides the logger used by the server.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithReadTimeout bounds the wait for each PDU from a peer. An idle
// association is aborted when it expires.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.ReadTimeout = timeout
	}
}

// WithWriteTimeout sets the write timeout for client connections.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.WriteTimeout = timeout
	}
}

// WithMaxPDULength sets the maximum PDU length advertised to peers.
func WithMaxPDULength(n uint32) Option {
	return func(s *Server) {
		s.MaxPDULength = n
	}
}

// WithStrictCalledAE rejects associations addressed to another AE title.
func WithStrictCalledAE(strict bool) Option {
	return func(s *Server) {
		s.StrictCalledAE = strict
	}
}

// Server exposes a reusable DICOM listener that wires the DIMSE and PDU layers.
type Server struct {
	AETitle        string
	Handler        interfaces.StreamingServiceHandler
	Logger         zerolog.Logger
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxPDULength   uint32
	StrictCalledAE bool
}

// New builds a Server with the provided AE title and handler.
func New(aeTitle string, handler interfaces.StreamingServiceHandler, opts ...Option) *Server {
	srv := &Server{AETitle: aeTitle, Handler: handler, Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// ListenAndServe listens on the given address and serves until the context is done or an error occurs.
func ListenAndServe(ctx context.Context, address, aeTitle string, handler interfaces.StreamingServiceHandler, opts ...Option) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	defer listener.Close()

	srv := New(aeTitle, handler, opts...)
	return srv.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled or an
// unrecoverable error occurs. Open associations are aborted on cancellation
// and Serve returns once all of them have ended.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return errors.New("dicomserver: listener is required")
	}
	if s == nil {
		return errors.New("dicomserver: server is nil")
	}
	if s.Handler == nil {
		return errors.New("dicomserver: handler is required")
	}
	if s.AETitle == "" {
		return errors.New("dicomserver: AE title is required")
	}

	logger := s.Logger.With().Str("ae_title", s.AETitle).Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		_ = listener.Close()
	})
	defer stop()

	logger.Info().Str("address", listener.Addr().String()).Msg("DICOM server listening")

	var (
		wg       sync.WaitGroup
		serveErr error
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				logger.Warn().Err(err).Msg("Accept timeout")
				continue
			}
			serveErr = err
			break
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			s.handleConnection(ctx, c, logger)
		}(conn)
	}

	cancel()
	wg.Wait()

	if serveErr != nil {
		return serveErr
	}
	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, logger zerolog.Logger) {
	logger = logger.With().Str("remote_addr", conn.RemoteAddr().String()).Logger()
	logger.Info().Msg("Accepted DICOM connection")

	service := dimse.NewService(s.Handler, logger)
	layer := pdu.NewLayer(conn, service, pdu.Config{
		AETitle:        s.AETitle,
		StrictCalledAE: s.StrictCalledAE,
		MaxPDULength:   s.MaxPDULength,
		ReadTimeout:    s.ReadTimeout,
		WriteTimeout:   s.WriteTimeout,
	}, logger)

	if err := layer.HandleConnection(ctx); err != nil && ctx.Err() == nil {
		logger.Warn().Err(err).Msg("DIMSE connection ended")
		return
	}
	logger.Info().Msg("DIMSE connection closed")
}
