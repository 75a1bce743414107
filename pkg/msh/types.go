package msh

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"

	"github.com/sirosfoundation/as4core/pkg/message"
	"github.com/sirosfoundation/as4core/pkg/pmode"
)

var (
	// ErrNoPayloads is returned when attachment-mode encryption is
	// requested for a message without payloads
	ErrNoPayloads = errors.New("message has no payloads")
	// ErrSignatureMissing is returned when policy requires a signed
	// message but the envelope carries no signature
	ErrSignatureMissing = errors.New("policy requires a signature but the message is unsigned")
)

// Material holds the key material of one exchange: the local signing
// and decryption key pair plus the partner's certificate for signature
// verification and key transport. Supplied once at construction and
// reused for every call.
type Material struct {
	LocalKey    *rsa.PrivateKey
	LocalCert   *x509.Certificate
	PartnerCert *x509.Certificate

	// PartnerIssuer is the issuer of PartnerCert, used for revocation
	// checking. Defaults to PartnerCert itself for pinned self-signed
	// setups.
	PartnerIssuer *x509.Certificate
}

// Payload is one application payload handed to Submit
type Payload struct {
	Data        []byte
	ContentType string
}

// OutboundRequest describes a message to build and secure
type OutboundRequest struct {
	// PModeID selects the processing mode; an unknown or empty ID
	// resolves to the registry default when one is set
	PModeID string

	FromParty     string
	FromPartyType string
	ToParty       string
	ToPartyType   string
	Service       string
	Action        string

	ConversationID string
	RefToMessageID string

	Payloads []Payload
}

// TransportMessage is a wire-ready MIME package
type TransportMessage struct {
	MessageID   string
	ContentType string
	Body        []byte
}

// InboundResult is a fully processed received message. Exactly one of
// UserMessage and Signal is set.
type InboundResult struct {
	UserMessage *message.UserMessage
	Signal      *message.SignalMessage
	Parts       []message.Part

	// PMode is the processing mode the message resolved to;
	// ViaDefaultPMode marks resolution through the registry default
	// rather than a direct match
	PMode           *pmode.ProcessingMode
	ViaDefaultPMode bool
}

// ReceivedHandler consumes accepted inbound messages. It runs on the
// worker pool, detached from the protocol handler.
type ReceivedHandler func(*InboundResult)

// ReceiptSender transmits a generated receipt back to the sender. It
// runs on the worker pool; a returned error is logged, not propagated.
type ReceiptSender func(*TransportMessage) error
