package types

// PDU type constants
const (
	TypeAssociateRQ = 0x01
	TypeAssociateAC = 0x02
	TypeAssociateRJ = 0x03
	TypePDataTF     = 0x04
	TypeReleaseRQ   = 0x05
	TypeReleaseRP   = 0x06
	TypeAbort       = 0x07
)

// Variable item types inside A-ASSOCIATE-RQ/AC
const (
	ItemApplicationContext     = 0x10
	ItemPresentationContextRQ  = 0x20
	ItemPresentationContextAC  = 0x21
	ItemAbstractSyntax         = 0x30
	ItemTransferSyntax         = 0x40
	ItemUserInformation        = 0x50
	ItemMaximumLength          = 0x51
	ItemImplementationClassUID = 0x52
	ItemImplementationVersion  = 0x55
)

// Presentation context results
const (
	ContextAccepted                  = 0x00
	ContextUserRejection             = 0x01
	ContextNoReason                  = 0x02
	ContextAbstractSyntaxUnsupported = 0x03
	ContextTransferSyntaxUnsupported = 0x04
)

// A-ASSOCIATE-RJ result, source and reason values
const (
	RejectPermanent = 0x01
	RejectTransient = 0x02

	RejectSourceServiceUser = 0x01

	RejectReasonNoReason               = 0x01
	RejectReasonAppContextNotSupported = 0x02
	RejectReasonCallingAENotRecognized = 0x03
	RejectReasonCalledAENotRecognized  = 0x07
)

// Message control header bits of a PDV
const (
	PDVCommand      = 0x01
	PDVLastFragment = 0x02
)

// DefaultMaxPDULength is advertised when no other value is configured.
const DefaultMaxPDULength = 16384

// PDU represents a Protocol Data Unit
type PDU struct {
	Type   byte
	Length uint32
	Data   []byte
}

// AssociationContext holds association state
type AssociationContext struct {
	CalledAETitle    string
	CallingAETitle   string
	MaxPDULength     uint32
	PresentationCtxs map[byte]*PresentationContext
}

// PresentationContext represents a negotiated presentation context
type PresentationContext struct {
	ID             byte
	Result         byte
	AbstractSyntax string
	TransferSyntax string
}
