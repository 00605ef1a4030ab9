// Package pdu implements the DICOM upper layer protocol: PDU framing,
// association negotiation, P-DATA-TF fragmentation, release and abort.
package pdu

import (
	"encoding/binary"
	"fmt"
	"io"

	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// PDU types
const (
	TypeAssociateRQ = types.TypeAssociateRQ
	TypeAssociateAC = types.TypeAssociateAC
	TypeAssociateRJ = types.TypeAssociateRJ
	TypePDataTF     = types.TypePDataTF
	TypeReleaseRQ   = types.TypeReleaseRQ
	TypeReleaseRP   = types.TypeReleaseRP
	TypeAbort       = types.TypeAbort
)

// maxReadLength bounds any single PDU accepted from a peer.
const maxReadLength = 16 << 20

// headerLength is the PDU type, a reserved byte and the 4 byte length.
const headerLength = 6

// ReadPDU reads one complete PDU.
func ReadPDU(r io.Reader) (*types.PDU, error) {
	header := make([]byte, headerLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	pduType := header[0]
	length := binary.BigEndian.Uint32(header[2:6])
	if length > maxReadLength {
		return nil, dicomerrors.NewPDUError(pduType, fmt.Sprintf("length %d exceeds limit", length))
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read PDU data: %w", err)
	}

	return &types.PDU{Type: pduType, Length: length, Data: data}, nil
}

// WritePDU writes a PDU header followed by data in a single write.
func WritePDU(w io.Writer, pduType byte, data []byte) error {
	buf := make([]byte, 0, headerLength+len(data))
	buf = append(buf, pduType, 0x00)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	_, err := w.Write(buf)
	return err
}

// PDV is one presentation data value item of a P-DATA-TF PDU.
type PDV struct {
	ContextID byte
	Control   byte
	Data      []byte
}

// IsCommand reports whether the PDV carries command set bytes.
func (p PDV) IsCommand() bool {
	return p.Control&types.PDVCommand != 0
}

// IsLast reports whether the PDV is the last fragment of its command or data set.
func (p PDV) IsLast() bool {
	return p.Control&types.PDVLastFragment != 0
}

// ParsePDataTF splits a P-DATA-TF body into its PDV items.
func ParsePDataTF(data []byte) ([]PDV, error) {
	var pdvs []PDV
	offset := 0
	for offset < len(data) {
		if offset+6 > len(data) {
			return nil, dicomerrors.NewPDUError(TypePDataTF, "truncated PDV item")
		}
		length := binary.BigEndian.Uint32(data[offset : offset+4])
		if length < 2 {
			return nil, dicomerrors.NewPDUError(TypePDataTF, "PDV item too short")
		}
		end := offset + 4 + int(length)
		if end > len(data) || end < offset {
			return nil, dicomerrors.NewPDUError(TypePDataTF, "PDV length exceeds PDU")
		}
		pdvs = append(pdvs, PDV{
			ContextID: data[offset+4],
			Control:   data[offset+5],
			Data:      data[offset+6 : end],
		})
		offset = end
	}
	if len(pdvs) == 0 {
		return nil, dicomerrors.NewPDUError(TypePDataTF, "no PDV items")
	}
	return pdvs, nil
}

// EncodePDataTF builds a P-DATA-TF body from PDV items.
func EncodePDataTF(pdvs ...PDV) []byte {
	var buf []byte
	for _, p := range pdvs {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Data)+2))
		buf = append(buf, p.ContextID, p.Control)
		buf = append(buf, p.Data...)
	}
	return buf
}

// Fragment splits a command or data set into PDVs so that each fits in a
// P-DATA-TF PDU no longer than maxPDULength. A zero maxPDULength means the
// peer accepts any length.
func Fragment(contextID byte, command bool, data []byte, maxPDULength uint32) []PDV {
	var control byte
	if command {
		control = types.PDVCommand
	}

	chunk := len(data)
	if maxPDULength > 6 && int(maxPDULength-6) < chunk {
		chunk = int(maxPDULength - 6)
	}

	var pdvs []PDV
	for {
		n := min(chunk, len(data))
		pdv := PDV{ContextID: contextID, Control: control, Data: data[:n]}
		data = data[n:]
		if len(data) == 0 {
			pdv.Control |= types.PDVLastFragment
			return append(pdvs, pdv)
		}
		pdvs = append(pdvs, pdv)
	}
}

// WriteMessage sends a command and an optional data set as P-DATA-TF PDUs,
// one PDV per PDU. A nil dataset sends the command only.
func WriteMessage(w io.Writer, contextID byte, command, dataset []byte, maxPDULength uint32) error {
	for _, pdv := range Fragment(contextID, true, command, maxPDULength) {
		if err := WritePDU(w, TypePDataTF, EncodePDataTF(pdv)); err != nil {
			return fmt.Errorf("failed to send command PDU: %w", err)
		}
	}
	if dataset == nil {
		return nil
	}
	for _, pdv := range Fragment(contextID, false, dataset, maxPDULength) {
		if err := WritePDU(w, TypePDataTF, EncodePDataTF(pdv)); err != nil {
			return fmt.Errorf("failed to send dataset PDU: %w", err)
		}
	}
	return nil
}

// Abort is the body of an A-ABORT PDU.
type Abort struct {
	Source byte
	Reason byte
}

// Abort sources and reasons.
const (
	AbortSourceServiceUser     = 0x00
	AbortSourceServiceProvider = 0x02

	AbortReasonNotSpecified     = 0x00
	AbortReasonUnrecognizedPDU  = 0x01
	AbortReasonUnexpectedPDU    = 0x02
	AbortReasonInvalidParameter = 0x06
)

func (a Abort) Encode() []byte {
	return []byte{0x00, 0x00, a.Source, a.Reason}
}

func ParseAbort(data []byte) Abort {
	if len(data) < 4 {
		return Abort{}
	}
	return Abort{Source: data[2], Reason: data[3]}
}

// ReleaseBody is the fixed 4 byte body of A-RELEASE-RQ and A-RELEASE-RP.
func ReleaseBody() []byte {
	return make([]byte, 4)
}
