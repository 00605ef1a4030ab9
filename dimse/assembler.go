package dimse

import (
	"fmt"

	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// Assembler collects PDV fragments into one command and its optional data set.
// Messages on an association are not interleaved, so one Assembler serves a
// whole connection, on either side of it.
type Assembler struct {
	contextID byte
	command   []byte
	dataset   []byte
	msg       *types.Message
	started   bool
}

// Add consumes one PDV. It reports true once the message is complete.
func (a *Assembler) Add(contextID, control byte, data []byte) (bool, error) {
	isCommand := control&types.PDVCommand != 0
	isLast := control&types.PDVLastFragment != 0

	if a.started && contextID != a.contextID {
		return false, fmt.Errorf("%w: fragment for context %d while assembling context %d",
			dicomerrors.ErrInvalidMessage, contextID, a.contextID)
	}

	if isCommand {
		if a.msg != nil {
			return false, fmt.Errorf("%w: command fragment while awaiting data set", dicomerrors.ErrInvalidMessage)
		}
		a.started = true
		a.contextID = contextID
		a.command = append(a.command, data...)
		if !isLast {
			return false, nil
		}
		msg, err := DecodeCommand(a.command)
		if err != nil {
			return false, err
		}
		a.msg = msg
		return !msg.HasDataset(), nil
	}

	if a.msg == nil {
		return false, fmt.Errorf("%w: data set fragment without command", dicomerrors.ErrInvalidMessage)
	}
	a.dataset = append(a.dataset, data...)
	return isLast, nil
}

// Take returns the completed message and clears the Assembler for the next one.
func (a *Assembler) Take() (contextID byte, msg *types.Message, dataset []byte) {
	contextID, msg, dataset = a.contextID, a.msg, a.dataset
	a.Reset()
	return contextID, msg, dataset
}

// Reset discards any partial message.
func (a *Assembler) Reset() {
	*a = Assembler{}
}
