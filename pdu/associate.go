package pdu

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/types"
)

// Implementation identification sent in the user information item.
const (
	ImplementationClassUID = "2.25.263396925936185862437658069236411829543"
	ImplementationVersion  = "DICOMWL_1.0"
)

// fixedFieldsLength covers protocol version, AE titles and reserved bytes.
const fixedFieldsLength = 68

// ProposedContext is a presentation context offered in an A-ASSOCIATE-RQ.
type ProposedContext struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string
}

// AssociateRQ is the content of an A-ASSOCIATE-RQ PDU.
type AssociateRQ struct {
	CalledAETitle          string
	CallingAETitle         string
	ApplicationContext     string
	Contexts               []ProposedContext
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
}

// AssociateAC is the content of an A-ASSOCIATE-AC PDU.
type AssociateAC struct {
	CalledAETitle          string
	CallingAETitle         string
	ApplicationContext     string
	Contexts               []types.PresentationContext
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
}

// AssociateRJ is the content of an A-ASSOCIATE-RJ PDU.
type AssociateRJ struct {
	Result byte
	Source byte
	Reason byte
}

func (rj AssociateRJ) Encode() []byte {
	return []byte{0x00, rj.Result, rj.Source, rj.Reason}
}

func ParseAssociateRJ(data []byte) (AssociateRJ, error) {
	if len(data) < 4 {
		return AssociateRJ{}, dicomerrors.NewPDUError(TypeAssociateRJ, "A-ASSOCIATE-RJ too short")
	}
	return AssociateRJ{Result: data[1], Source: data[2], Reason: data[3]}, nil
}

// Encode builds the A-ASSOCIATE-RQ body.
func (rq *AssociateRQ) Encode() []byte {
	var items []byte
	items = appendItem(items, types.ItemApplicationContext, []byte(applicationContext(rq.ApplicationContext)))
	for _, pc := range rq.Contexts {
		body := []byte{pc.ID, 0x00, 0x00, 0x00}
		body = appendItem(body, types.ItemAbstractSyntax, []byte(pc.AbstractSyntax))
		for _, ts := range pc.TransferSyntaxes {
			body = appendItem(body, types.ItemTransferSyntax, []byte(ts))
		}
		items = appendItem(items, types.ItemPresentationContextRQ, body)
	}
	items = appendItem(items, types.ItemUserInformation, userInformation(rq.MaxPDULength, rq.ImplementationClassUID, rq.ImplementationVersion))
	return append(fixedFields(rq.CalledAETitle, rq.CallingAETitle), items...)
}

// Encode builds the A-ASSOCIATE-AC body. Every context from the request is
// listed; only accepted ones carry a transfer syntax.
func (ac *AssociateAC) Encode() []byte {
	var items []byte
	items = appendItem(items, types.ItemApplicationContext, []byte(applicationContext(ac.ApplicationContext)))
	for _, pc := range ac.Contexts {
		body := []byte{pc.ID, 0x00, pc.Result, 0x00}
		if pc.Result == types.ContextAccepted {
			body = appendItem(body, types.ItemTransferSyntax, []byte(pc.TransferSyntax))
		}
		items = appendItem(items, types.ItemPresentationContextAC, body)
	}
	items = appendItem(items, types.ItemUserInformation, userInformation(ac.MaxPDULength, ac.ImplementationClassUID, ac.ImplementationVersion))
	return append(fixedFields(ac.CalledAETitle, ac.CallingAETitle), items...)
}

// ParseAssociateRQ decodes an A-ASSOCIATE-RQ body.
func ParseAssociateRQ(data []byte) (*AssociateRQ, error) {
	called, calling, err := parseFixedFields(TypeAssociateRQ, data)
	if err != nil {
		return nil, err
	}
	rq := &AssociateRQ{CalledAETitle: called, CallingAETitle: calling}

	err = walkItems(data[fixedFieldsLength:], func(itemType byte, value []byte) error {
		switch itemType {
		case types.ItemApplicationContext:
			rq.ApplicationContext = normalizeUID(value)
		case types.ItemPresentationContextRQ:
			pc, err := parseProposedContext(value)
			if err != nil {
				return err
			}
			rq.Contexts = append(rq.Contexts, pc)
		case types.ItemUserInformation:
			return parseUserInformation(value, &rq.MaxPDULength, &rq.ImplementationClassUID, &rq.ImplementationVersion)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rq, nil
}

// ParseAssociateAC decodes an A-ASSOCIATE-AC body.
func ParseAssociateAC(data []byte) (*AssociateAC, error) {
	called, calling, err := parseFixedFields(TypeAssociateAC, data)
	if err != nil {
		return nil, err
	}
	ac := &AssociateAC{CalledAETitle: called, CallingAETitle: calling}

	err = walkItems(data[fixedFieldsLength:], func(itemType byte, value []byte) error {
		switch itemType {
		case types.ItemApplicationContext:
			ac.ApplicationContext = normalizeUID(value)
		case types.ItemPresentationContextAC:
			if len(value) < 4 {
				return dicomerrors.NewPDUError(TypeAssociateAC, "presentation context item too short")
			}
			pc := types.PresentationContext{ID: value[0], Result: value[2]}
			err := walkItems(value[4:], func(subType byte, sub []byte) error {
				if subType == types.ItemTransferSyntax {
					pc.TransferSyntax = normalizeUID(sub)
				}
				return nil
			})
			if err != nil {
				return err
			}
			ac.Contexts = append(ac.Contexts, pc)
		case types.ItemUserInformation:
			return parseUserInformation(value, &ac.MaxPDULength, &ac.ImplementationClassUID, &ac.ImplementationVersion)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ac, nil
}

// Negotiate answers each proposed context. The first entry of
// transferSyntaxes the peer also proposed wins, so the order expresses the
// acceptor's preference.
func Negotiate(proposed []ProposedContext, abstractSyntaxes, transferSyntaxes []string) []types.PresentationContext {
	out := make([]types.PresentationContext, 0, len(proposed))
	for _, p := range proposed {
		pc := types.PresentationContext{ID: p.ID, AbstractSyntax: p.AbstractSyntax}
		switch {
		case !slices.Contains(abstractSyntaxes, p.AbstractSyntax):
			pc.Result = types.ContextAbstractSyntaxUnsupported
		default:
			pc.Result = types.ContextTransferSyntaxUnsupported
			for _, ts := range transferSyntaxes {
				if slices.Contains(p.TransferSyntaxes, ts) {
					pc.Result = types.ContextAccepted
					pc.TransferSyntax = ts
					break
				}
			}
		}
		out = append(out, pc)
	}
	return out
}

func applicationContext(uid string) string {
	if uid == "" {
		return types.ApplicationContextUID
	}
	return uid
}

func fixedFields(called, calling string) []byte {
	buf := make([]byte, fixedFieldsLength)
	binary.BigEndian.PutUint16(buf[0:2], 0x0001)
	copy(buf[4:20], padAETitle(called))
	copy(buf[20:36], padAETitle(calling))
	return buf
}

func padAETitle(ae string) string {
	if len(ae) > 16 {
		ae = ae[:16]
	}
	return fmt.Sprintf("%-16s", ae)
}

func parseFixedFields(pduType byte, data []byte) (string, string, error) {
	if len(data) < fixedFieldsLength {
		return "", "", dicomerrors.NewPDUError(pduType, "association PDU too short")
	}
	return trimAETitle(data[4:20]), trimAETitle(data[20:36]), nil
}

func trimAETitle(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func normalizeUID(raw []byte) string {
	return strings.TrimRight(string(raw), "\x00 ")
}

func appendItem(buf []byte, itemType byte, value []byte) []byte {
	buf = append(buf, itemType, 0x00)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(value)))
	return append(buf, value...)
}

// walkItems iterates over type/reserved/length/value items.
func walkItems(data []byte, fn func(itemType byte, value []byte) error) error {
	offset := 0
	for offset+4 <= len(data) {
		itemType := data[offset]
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		end := offset + 4 + length
		if end > len(data) {
			return dicomerrors.NewPDUError(itemType, "item exceeds PDU length")
		}
		if err := fn(itemType, data[offset+4:end]); err != nil {
			return err
		}
		offset = end
	}
	if offset != len(data) {
		return dicomerrors.NewPDUError(0, "trailing bytes after last item")
	}
	return nil
}

func parseProposedContext(data []byte) (ProposedContext, error) {
	if len(data) < 4 {
		return ProposedContext{}, dicomerrors.NewPDUError(TypeAssociateRQ, "presentation context item too short")
	}
	pc := ProposedContext{ID: data[0]}
	err := walkItems(data[4:], func(itemType byte, value []byte) error {
		switch itemType {
		case types.ItemAbstractSyntax:
			pc.AbstractSyntax = normalizeUID(value)
		case types.ItemTransferSyntax:
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, normalizeUID(value))
		}
		return nil
	})
	if err != nil {
		return ProposedContext{}, err
	}
	if pc.AbstractSyntax == "" {
		return ProposedContext{}, dicomerrors.NewPDUError(TypeAssociateRQ, fmt.Sprintf("presentation context %d missing abstract syntax", pc.ID))
	}
	return pc, nil
}

func userInformation(maxPDULength uint32, classUID, version string) []byte {
	if classUID == "" {
		classUID = ImplementationClassUID
	}
	if version == "" {
		version = ImplementationVersion
	}
	var buf []byte
	buf = appendItem(buf, types.ItemMaximumLength, binary.BigEndian.AppendUint32(nil, maxPDULength))
	buf = appendItem(buf, types.ItemImplementationClassUID, []byte(classUID))
	buf = appendItem(buf, types.ItemImplementationVersion, []byte(version))
	return buf
}

func parseUserInformation(data []byte, maxPDULength *uint32, classUID, version *string) error {
	return walkItems(data, func(itemType byte, value []byte) error {
		switch itemType {
		case types.ItemMaximumLength:
			if len(value) == 4 {
				*maxPDULength = binary.BigEndian.Uint32(value)
			}
		case types.ItemImplementationClassUID:
			*classUID = normalizeUID(value)
		case types.ItemImplementationVersion:
			*version = strings.TrimSpace(string(value))
		}
		return nil
	})
}
