package dimse

import (
	"fmt"

	"github.com/caio-sobreiro/dicomworklist/dicom"
	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// EncodeCommand serializes a command set in Implicit VR Little Endian with a
// leading group length element, as every DIMSE command set is sent.
func EncodeCommand(msg *types.Message) []byte {
	ds := dicom.NewDataset()

	addUID := func(tag dicom.Tag, uid string) {
		if uid != "" {
			ds.AddElement(tag, dicom.VR_UI, uid)
		}
	}
	addUID(dicom.AffectedSOPClassUID, msg.AffectedSOPClassUID)
	addUID(dicom.RequestedSOPClassUID, msg.RequestedSOPClassUID)
	addUID(dicom.AffectedSOPInstanceUID, msg.AffectedSOPInstanceUID)
	addUID(dicom.RequestedSOPInstanceUID, msg.RequestedSOPInstanceUID)

	ds.AddElement(dicom.CommandField, dicom.VR_US, msg.CommandField)
	ds.AddElement(dicom.CommandDataSetType, dicom.VR_US, msg.CommandDataSetType)

	if isResponse(msg.CommandField) {
		ds.AddElement(dicom.MessageIDBeingRespondedTo, dicom.VR_US, msg.MessageIDBeingRespondedTo)
		ds.AddElement(dicom.Status, dicom.VR_US, msg.Status)
		if msg.ErrorComment != "" {
			ds.AddElement(dicom.ErrorComment, dicom.VR_LO, truncate(msg.ErrorComment, 64))
		}
	} else if msg.CommandField == types.CCancelRQ {
		ds.AddElement(dicom.MessageIDBeingRespondedTo, dicom.VR_US, msg.MessageIDBeingRespondedTo)
	} else {
		ds.AddElement(dicom.MessageID, dicom.VR_US, msg.MessageID)
		if hasPriority(msg.CommandField) {
			ds.AddElement(dicom.Priority, dicom.VR_US, msg.Priority)
		}
	}

	// Implicit VR never fails to encode a dataset built from known types.
	body, _ := dicom.EncodeDatasetWithTransferSyntax(ds, types.ImplicitVRLittleEndian)

	header := dicom.NewDataset()
	header.AddElement(dicom.CommandGroupLength, dicom.VR_UL, uint32(len(body)))
	out, _ := dicom.EncodeDatasetWithTransferSyntax(header, types.ImplicitVRLittleEndian)
	return append(out, body...)
}

// DecodeCommand parses an Implicit VR Little Endian command set.
func DecodeCommand(data []byte) (*types.Message, error) {
	ds, err := dicom.ParseDatasetWithTransferSyntax(data, types.ImplicitVRLittleEndian)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dicomerrors.ErrInvalidMessage, err)
	}

	command, ok := ds.GetUint16(dicom.CommandField)
	if !ok {
		return nil, fmt.Errorf("%w: missing command field", dicomerrors.ErrInvalidMessage)
	}

	msg := &types.Message{
		CommandField:            command,
		AffectedSOPClassUID:     ds.GetString(dicom.AffectedSOPClassUID),
		AffectedSOPInstanceUID:  ds.GetString(dicom.AffectedSOPInstanceUID),
		RequestedSOPClassUID:    ds.GetString(dicom.RequestedSOPClassUID),
		RequestedSOPInstanceUID: ds.GetString(dicom.RequestedSOPInstanceUID),
		ErrorComment:            ds.GetString(dicom.ErrorComment),
		CommandDataSetType:      types.NoDataSet,
	}
	if v, ok := ds.GetUint16(dicom.CommandDataSetType); ok {
		msg.CommandDataSetType = v
	}
	msg.MessageID, _ = ds.GetUint16(dicom.MessageID)
	msg.MessageIDBeingRespondedTo, _ = ds.GetUint16(dicom.MessageIDBeingRespondedTo)
	msg.Priority, _ = ds.GetUint16(dicom.Priority)
	msg.Status, _ = ds.GetUint16(dicom.Status)
	return msg, nil
}

func isResponse(command uint16) bool {
	return command&0x8000 != 0
}

// Priority is carried by the composite requests that queue work.
func hasPriority(command uint16) bool {
	switch command {
	case types.CStoreRQ, types.CFindRQ:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
