package services

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	"github.com/caio-sobreiro/dicomworklist/interfaces"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// Registry manages DICOM service handlers and routes incoming DIMSE messages.
//
// The registry acts as a dispatcher, routing DIMSE messages to the appropriate
// service handler based on the command field. Every handler is driven through
// the streaming interface; single-response handlers are adapted on
// registration.
//
// Example usage:
//
//	registry := services.NewRegistry()
//	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService())
//	registry.RegisterStreamingHandler(types.CFindRQ, worklistService)
//
//	srv := server.New("WORKLIST", registry)
type Registry struct {
	handlers map[uint16]interfaces.StreamingServiceHandler
}

// NewRegistry creates a new, empty service registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[uint16]interfaces.StreamingServiceHandler),
	}
}

// RegisterHandler registers a single-response handler for a DIMSE command.
// Registering a command again replaces the previous handler.
func (r *Registry) RegisterHandler(commandField uint16, handler interfaces.ServiceHandler) {
	r.handlers[commandField] = singleResponse{handler}
}

// RegisterStreamingHandler registers a handler that may send several
// responses for one request.
func (r *Registry) RegisterStreamingHandler(commandField uint16, handler interfaces.StreamingServiceHandler) {
	r.handlers[commandField] = handler
}

// UnregisterHandler removes the handler for a DIMSE command. Later requests
// with that command are answered with 0x0211 (unrecognized operation).
func (r *Registry) UnregisterHandler(commandField uint16) {
	delete(r.handlers, commandField)
}

// HandleDIMSEStreaming routes a message to its handler. Commands without a
// handler are answered with an unrecognized operation status. C-CANCEL is
// never answered.
func (r *Registry) HandleDIMSEStreaming(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().
		Str("command", types.CommandName(msg.CommandField)).
		Uint16("message_id", msg.MessageID).
		Msg("Routing DIMSE message")

	if msg.CommandField == types.CCancelRQ {
		return nil
	}

	handler, ok := r.handlers[msg.CommandField]
	if !ok {
		logger.Warn().
			Str("command", types.CommandName(msg.CommandField)).
			Msg("No handler registered for DIMSE command")
		return responder.SendResponse(CreateErrorResponse(msg, types.StatusUnrecognizedOperation), nil)
	}
	return handler.HandleDIMSEStreaming(ctx, msg, data, meta, responder)
}

// HasHandler returns true if a handler is registered for the given command field.
func (r *Registry) HasHandler(commandField uint16) bool {
	_, ok := r.handlers[commandField]
	return ok
}

// RegisteredCommands returns the command fields that have handlers, in ascending order.
func (r *Registry) RegisteredCommands() []uint16 {
	commands := make([]uint16, 0, len(r.handlers))
	for cmd := range r.handlers {
		commands = append(commands, cmd)
	}
	slices.Sort(commands)
	return commands
}

// singleResponse adapts a ServiceHandler to the streaming interface.
type singleResponse struct {
	handler interfaces.ServiceHandler
}

func (s singleResponse) HandleDIMSEStreaming(ctx context.Context, msg *types.Message, data *dicom.Dataset, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
	resp, respData, err := s.handler.HandleDIMSE(ctx, msg, data, meta)
	if err != nil {
		return err
	}
	return responder.SendResponse(resp, respData)
}

// CreateErrorResponse creates a DIMSE response to req carrying status and no
// data set.
func CreateErrorResponse(req *types.Message, status uint16) *types.Message {
	resp := NewResponseBuilder(req).response(status)
	resp.AffectedSOPInstanceUID = req.AffectedSOPInstanceUID
	if resp.AffectedSOPInstanceUID == "" {
		resp.AffectedSOPInstanceUID = req.RequestedSOPInstanceUID
	}
	return resp
}
