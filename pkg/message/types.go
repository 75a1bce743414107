package message

import (
	"encoding/xml"
	"time"
)

// Namespace constants for SOAP 1.2, ebMS3 and WS-Security
const (
	NsSOAPEnv = "http://www.w3.org/2003/05/soap-envelope"
	NsEbMS    = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/"
	NsWSSE    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NsWSU     = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NsDS      = "http://www.w3.org/2000/09/xmldsig#"
	NsXENC    = "http://www.w3.org/2001/04/xmlenc#"
	NsXENC11  = "http://www.w3.org/2009/xmlenc11#"
)

// Message exchange pattern URIs
const (
	MEPOneWay          = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/oneWay"
	MEPTwoWay          = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/twoWay"
	MEPBindingPush     = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/push"
	MEPBindingPull     = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pull"
	MEPBindingPushPush = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pushAndPush"
)

// Default party role when the caller does not supply one
const DefaultRole = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/defaultRole"

// Envelope represents a SOAP 1.2 envelope
type Envelope struct {
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Envelope"`
	Header  *Header  `xml:"Header"`
	Body    *Body    `xml:"Body"`
}

// Header carries the ebMS3 Messaging header. The wsse:Security header is
// inserted by the security package as a raw XML element so the signature
// survives canonicalization unchanged.
type Header struct {
	Messaging *Messaging `xml:"http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/ Messaging"`
}

// Body is the SOAP body. For attachment-profile exchanges it stays empty;
// for body-carried exchanges it holds the business document.
type Body struct {
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Body"`
	Content []byte   `xml:",innerxml"`
}

// Messaging is the ebMS3 Messaging header. The env:mustUnderstand
// attribute is set explicitly when the security header is built, so that
// the prefix matches the envelope's declaration.
type Messaging struct {
	XMLName       xml.Name       `xml:"http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/ Messaging"`
	UserMessage   *UserMessage   `xml:"UserMessage,omitempty"`
	SignalMessage *SignalMessage `xml:"SignalMessage,omitempty"`
}

// UserMessage is an ebMS3 business message header
type UserMessage struct {
	XMLName           xml.Name           `xml:"http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/ UserMessage"`
	MessageInfo       *MessageInfo       `xml:"MessageInfo"`
	PartyInfo         *PartyInfo         `xml:"PartyInfo"`
	CollaborationInfo *CollaborationInfo `xml:"CollaborationInfo"`
	MessageProperties *MessageProperties `xml:"MessageProperties,omitempty"`
	PayloadInfo       *PayloadInfo       `xml:"PayloadInfo,omitempty"`
}

// MessageInfo identifies a message and optionally the message it answers
type MessageInfo struct {
	Timestamp      time.Time `xml:"Timestamp"`
	MessageId      string    `xml:"MessageId"`
	RefToMessageId string    `xml:"RefToMessageId,omitempty"`
}

// PartyInfo names the sending and receiving parties
type PartyInfo struct {
	From *Party `xml:"From"`
	To   *Party `xml:"To"`
}

// Party is one side of an exchange
type Party struct {
	PartyId []PartyId `xml:"PartyId"`
	Role    string    `xml:"Role"`
}

// PartyId is a typed party identifier
type PartyId struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

// CollaborationInfo binds a message to its business context
type CollaborationInfo struct {
	AgreementRef   *AgreementRef `xml:"AgreementRef,omitempty"`
	Service        Service       `xml:"Service"`
	Action         string        `xml:"Action"`
	ConversationId string        `xml:"ConversationId"`
}

// AgreementRef references the business agreement governing the exchange.
// The pmode attribute, when present, names the processing mode directly.
type AgreementRef struct {
	Type  string `xml:"type,attr,omitempty"`
	Pmode string `xml:"pmode,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Service identifies the business service
type Service struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

// MessageProperties holds message-level name/value properties
type MessageProperties struct {
	Property []Property `xml:"Property"`
}

// Property is a single name/value property
type Property struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

// PayloadInfo references the MIME parts belonging to a message
type PayloadInfo struct {
	PartInfo []PartInfo `xml:"PartInfo"`
}

// PartInfo references one payload part by cid: href
type PartInfo struct {
	Href           string          `xml:"href,attr,omitempty"`
	PartProperties *PartProperties `xml:"PartProperties,omitempty"`
}

// PartProperties holds per-part name/value properties
type PartProperties struct {
	Property []Property `xml:"Property"`
}

// SignalMessage is an ebMS3 signal: a Receipt or an Error
type SignalMessage struct {
	XMLName     xml.Name     `xml:"http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/ SignalMessage"`
	MessageInfo *MessageInfo `xml:"MessageInfo"`
	Receipt     *Receipt     `xml:"Receipt,omitempty"`
	Error       *Error       `xml:"Error,omitempty"`
}

// Receipt acknowledges a received user message. For non-repudiation
// receipts the inner XML carries the NonRepudiationInformation element.
type Receipt struct {
	XMLName xml.Name `xml:"http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/ Receipt"`
	Any     []byte   `xml:",innerxml"`
}

// Error is an ebMS3 error signal
type Error struct {
	XMLName             xml.Name `xml:"http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/ Error"`
	ErrorCode           string   `xml:"errorCode,attr"`
	Severity            string   `xml:"severity,attr"`
	Category            string   `xml:"category,attr,omitempty"`
	ShortDescription    string   `xml:"shortDescription,attr,omitempty"`
	RefToMessageInError string   `xml:"refToMessageInError,attr,omitempty"`
	Description         string   `xml:"Description,omitempty"`
	ErrorDetail         string   `xml:"ErrorDetail,omitempty"`
}

// Part is a payload carried alongside the envelope as a MIME part
type Part struct {
	ContentID        string
	ContentType      string
	TransferEncoding string
	Data             []byte
}
