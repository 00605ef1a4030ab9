package dicom

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// Common transfer syntax UIDs
const (
	TransferSyntaxImplicitVRLittleEndian = types.ImplicitVRLittleEndian
	TransferSyntaxExplicitVRLittleEndian = types.ExplicitVRLittleEndian
)

const undefinedLength = 0xFFFFFFFF

// maxShortLength is the largest even value length a 16-bit length field can carry.
const maxShortLength = 0xFFFE

// Explicit VR encodings with a 2 byte reserved field and a 4 byte length.
func isLongVR(vr string) bool {
	switch vr {
	case VR_OB, VR_OD, VR_OF, VR_OL, VR_OV, VR_OW, VR_SQ, VR_SV, VR_UC, VR_UN, VR_UR, VR_UT, VR_UV:
		return true
	}
	return false
}

func isTextVR(vr string) bool {
	switch vr {
	case VR_AE, VR_AS, VR_CS, VR_DA, VR_DS, VR_DT, VR_IS, VR_LO, VR_LT, VR_PN,
		VR_SH, VR_ST, VR_TM, VR_UC, VR_UI, VR_UR, VR_UT:
		return true
	}
	return false
}

func explicitVR(transferSyntaxUID string) (bool, error) {
	switch transferSyntaxUID {
	case "", TransferSyntaxExplicitVRLittleEndian:
		return true, nil
	case TransferSyntaxImplicitVRLittleEndian:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", dicomerrors.ErrUnsupportedTransfer, transferSyntaxUID)
	}
}

// ParseDataset parses a DICOM dataset from raw bytes (Explicit VR Little Endian)
func ParseDataset(data []byte) (*Dataset, error) {
	return ParseDatasetWithTransferSyntax(data, TransferSyntaxExplicitVRLittleEndian)
}

// ParseDatasetWithTransferSyntax parses a dataset using the provided transfer syntax.
// Sequences with defined and undefined lengths are both accepted.
func ParseDatasetWithTransferSyntax(data []byte, transferSyntaxUID string) (*Dataset, error) {
	explicit, err := explicitVR(transferSyntaxUID)
	if err != nil {
		return nil, err
	}
	p := &parser{data: data, explicit: explicit}
	return p.readDataset(len(data), false)
}

type parser struct {
	data     []byte
	off      int
	explicit bool
}

func (p *parser) remaining() int {
	return len(p.data) - p.off
}

func (p *parser) readUint16() (uint16, error) {
	if p.remaining() < 2 {
		return 0, fmt.Errorf("dicom: truncated data at offset %d", p.off)
	}
	v := binary.LittleEndian.Uint16(p.data[p.off:])
	p.off += 2
	return v, nil
}

func (p *parser) readUint32() (uint32, error) {
	if p.remaining() < 4 {
		return 0, fmt.Errorf("dicom: truncated data at offset %d", p.off)
	}
	v := binary.LittleEndian.Uint32(p.data[p.off:])
	p.off += 4
	return v, nil
}

func (p *parser) readTag() (Tag, error) {
	group, err := p.readUint16()
	if err != nil {
		return Tag{}, err
	}
	element, err := p.readUint16()
	if err != nil {
		return Tag{}, err
	}
	return Tag{Group: group, Element: element}, nil
}

// readDataset reads elements up to end. Items of undefined length are read
// until their item delimiter instead.
func (p *parser) readDataset(end int, untilDelimiter bool) (*Dataset, error) {
	dataset := NewDataset()
	for p.off < end {
		tag, err := p.readTag()
		if err != nil {
			return nil, err
		}
		if tag == ItemDelimitationTag {
			if _, err := p.readUint32(); err != nil {
				return nil, err
			}
			if untilDelimiter {
				return dataset, nil
			}
			return nil, fmt.Errorf("dicom: unexpected item delimiter at offset %d", p.off-8)
		}

		element, err := p.readElement(tag)
		if err != nil {
			return nil, err
		}
		if p.off > end {
			return nil, fmt.Errorf("dicom: element %s overruns its item", tag)
		}
		dataset.Elements[tag] = element
	}
	if untilDelimiter {
		return nil, fmt.Errorf("dicom: missing item delimiter")
	}
	return dataset, nil
}

func (p *parser) readElement(tag Tag) (*Element, error) {
	var vr string
	var length uint32

	if p.explicit {
		if p.remaining() < 2 {
			return nil, fmt.Errorf("dicom: truncated VR for %s", tag)
		}
		vr = string(p.data[p.off : p.off+2])
		p.off += 2

		if isLongVR(vr) {
			// Long VR: Tag (4) + VR (2) + Reserved (2) + Length (4)
			p.off += 2
			l, err := p.readUint32()
			if err != nil {
				return nil, err
			}
			length = l
		} else {
			// Short VR: Tag (4) + VR (2) + Length (2)
			l, err := p.readUint16()
			if err != nil {
				return nil, err
			}
			length = uint32(l)
		}
	} else {
		vr = VRFor(tag)
		l, err := p.readUint32()
		if err != nil {
			return nil, err
		}
		length = l
		if length == undefinedLength {
			vr = VR_SQ
		}
	}

	if vr == VR_SQ {
		items, err := p.readSequence(tag, length)
		if err != nil {
			return nil, err
		}
		return &Element{Tag: tag, VR: VR_SQ, Value: items}, nil
	}

	if length == undefinedLength {
		return nil, fmt.Errorf("dicom: undefined length on non-sequence element %s", tag)
	}
	if int(length) > p.remaining() {
		return nil, fmt.Errorf("dicom: element %s length %d exceeds remaining %d bytes", tag, length, p.remaining())
	}

	raw := p.data[p.off : p.off+int(length)]
	p.off += int(length)
	return &Element{Tag: tag, VR: vr, Value: decodeValue(vr, raw)}, nil
}

func (p *parser) readSequence(tag Tag, length uint32) ([]*Dataset, error) {
	items := []*Dataset{}

	if length == undefinedLength {
		for {
			itemTag, err := p.readTag()
			if err != nil {
				return nil, err
			}
			itemLength, err := p.readUint32()
			if err != nil {
				return nil, err
			}
			switch itemTag {
			case SequenceDelimitationTag:
				return items, nil
			case ItemTag:
				item, err := p.readItem(itemLength)
				if err != nil {
					return nil, fmt.Errorf("dicom: sequence %s item %d: %w", tag, len(items)+1, err)
				}
				items = append(items, item)
			default:
				return nil, fmt.Errorf("dicom: unexpected tag %s in sequence %s", itemTag, tag)
			}
		}
	}

	end := p.off + int(length)
	if end > len(p.data) {
		return nil, fmt.Errorf("dicom: sequence %s length %d exceeds remaining %d bytes", tag, length, p.remaining())
	}
	for p.off < end {
		itemTag, err := p.readTag()
		if err != nil {
			return nil, err
		}
		itemLength, err := p.readUint32()
		if err != nil {
			return nil, err
		}
		if itemTag != ItemTag {
			return nil, fmt.Errorf("dicom: unexpected tag %s in sequence %s", itemTag, tag)
		}
		item, err := p.readItem(itemLength)
		if err != nil {
			return nil, fmt.Errorf("dicom: sequence %s item %d: %w", tag, len(items)+1, err)
		}
		items = append(items, item)
	}
	if p.off != end {
		return nil, fmt.Errorf("dicom: sequence %s overruns its length", tag)
	}
	return items, nil
}

func (p *parser) readItem(length uint32) (*Dataset, error) {
	if length == undefinedLength {
		return p.readDataset(len(p.data), true)
	}
	end := p.off + int(length)
	if end > len(p.data) {
		return nil, fmt.Errorf("dicom: item length %d exceeds remaining %d bytes", length, p.remaining())
	}
	return p.readDataset(end, false)
}

func decodeValue(vr string, raw []byte) interface{} {
	switch {
	case vr == VR_US && len(raw) == 2:
		return binary.LittleEndian.Uint16(raw)
	case vr == VR_UL && len(raw) == 4:
		return binary.LittleEndian.Uint32(raw)
	case isTextVR(vr):
		// Remove null padding
		return strings.TrimSpace(strings.TrimRight(string(raw), "\x00"))
	default:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}
}

// EncodeDataset encodes a dataset to bytes (Explicit VR Little Endian)
func (d *Dataset) EncodeDataset() []byte {
	return appendDataset(nil, d, true)
}

// EncodeDatasetWithTransferSyntax encodes a dataset using the provided transfer syntax.
// Sequences and items are always written with defined lengths.
func EncodeDatasetWithTransferSyntax(dataset *Dataset, transferSyntaxUID string) ([]byte, error) {
	if dataset == nil {
		return nil, nil
	}
	explicit, err := explicitVR(transferSyntaxUID)
	if err != nil {
		return nil, err
	}
	return appendDataset(nil, dataset, explicit), nil
}

func appendDataset(buf []byte, d *Dataset, explicit bool) []byte {
	// DICOM requires ascending tag order
	for _, tag := range d.Tags() {
		buf = appendElement(buf, d.Elements[tag], explicit)
	}
	return buf
}

func appendElement(buf []byte, element *Element, explicit bool) []byte {
	vr := element.VR
	if len(vr) != 2 {
		vr = VRFor(element.Tag)
	}
	value := encodeElementValue(vr, element.Value, explicit)

	buf = binary.LittleEndian.AppendUint16(buf, element.Tag.Group)
	buf = binary.LittleEndian.AppendUint16(buf, element.Tag.Element)

	if !explicit {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
		return append(buf, value...)
	}

	buf = append(buf, vr[0], vr[1])
	if isLongVR(vr) {
		buf = append(buf, 0x00, 0x00)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
	} else {
		if len(value) > maxShortLength {
			value = value[:maxShortLength]
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(value)))
	}
	return append(buf, value...)
}

// encodeElementValue encodes an element value to bytes, padded to even length.
func encodeElementValue(vr string, value interface{}, explicit bool) []byte {
	switch v := value.(type) {
	case nil:
		return nil
	case []*Dataset:
		var out []byte
		for _, item := range v {
			body := appendDataset(nil, item, explicit)
			out = binary.LittleEndian.AppendUint16(out, ItemTag.Group)
			out = binary.LittleEndian.AppendUint16(out, ItemTag.Element)
			out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
			out = append(out, body...)
		}
		return out
	case string:
		return padText(vr, []byte(strings.TrimRight(v, "\x00")))
	case []string:
		return padText(vr, []byte(strings.TrimRight(strings.Join(v, "\\"), "\x00")))
	case int:
		return padText(vr, []byte(strconv.Itoa(v)))
	case uint16:
		return binary.LittleEndian.AppendUint16(nil, v)
	case uint32:
		return binary.LittleEndian.AppendUint32(nil, v)
	case []byte:
		out := append([]byte(nil), v...)
		if len(out)%2 == 1 {
			out = append(out, 0x00)
		}
		return out
	default:
		return padText(vr, []byte(fmt.Sprintf("%v", v)))
	}
}

// UIDs pad with NUL, every other text VR pads with a space.
func padText(vr string, b []byte) []byte {
	if len(b)%2 == 0 {
		return b
	}
	if vr == VR_UI {
		return append(b, 0x00)
	}
	return append(b, 0x20)
}
