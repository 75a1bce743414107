package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const messageIdSuffix = "@as4core"

// NewMessageId generates a unique RFC 2822 style message identifier
func NewMessageId() string {
	return uuid.New().String() + messageIdSuffix
}

// Builder assembles a UserMessage and its payload parts
type Builder struct {
	msg   *UserMessage
	parts []Part
	errs  []error
}

// Option configures a Builder
type Option func(*Builder)

// NewUserMessage creates a builder with a fresh message ID, timestamp and
// conversation ID, then applies the given options
func NewUserMessage(opts ...Option) *Builder {
	b := &Builder{
		msg: &UserMessage{
			MessageInfo: &MessageInfo{
				Timestamp: time.Now().UTC(),
				MessageId: NewMessageId(),
			},
			PartyInfo: &PartyInfo{
				From: &Party{},
				To:   &Party{},
			},
			CollaborationInfo: &CollaborationInfo{
				ConversationId: uuid.New().String(),
			},
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithFrom sets the sending party with the default role
func WithFrom(partyId, partyType string) Option {
	return func(b *Builder) {
		b.msg.PartyInfo.From.PartyId = []PartyId{{Type: partyType, Value: partyId}}
		b.msg.PartyInfo.From.Role = DefaultRole
	}
}

// WithTo sets the receiving party with the default role
func WithTo(partyId, partyType string) Option {
	return func(b *Builder) {
		b.msg.PartyInfo.To.PartyId = []PartyId{{Type: partyType, Value: partyId}}
		b.msg.PartyInfo.To.Role = DefaultRole
	}
}

// WithFromRole overrides the sending party role
func WithFromRole(role string) Option {
	return func(b *Builder) { b.msg.PartyInfo.From.Role = role }
}

// WithToRole overrides the receiving party role
func WithToRole(role string) Option {
	return func(b *Builder) { b.msg.PartyInfo.To.Role = role }
}

// WithService sets the business service
func WithService(service string) Option {
	return func(b *Builder) { b.msg.CollaborationInfo.Service = Service{Value: service} }
}

// WithAction sets the business action
func WithAction(action string) Option {
	return func(b *Builder) { b.msg.CollaborationInfo.Action = action }
}

// WithConversationId overrides the generated conversation ID
func WithConversationId(convId string) Option {
	return func(b *Builder) { b.msg.CollaborationInfo.ConversationId = convId }
}

// WithRefToMessageId marks the message as a response
func WithRefToMessageId(refId string) Option {
	return func(b *Builder) { b.msg.MessageInfo.RefToMessageId = refId }
}

// WithAgreement sets the agreement reference, optionally naming the
// processing mode to use
func WithAgreement(agreement, pmodeId string) Option {
	return func(b *Builder) {
		b.msg.CollaborationInfo.AgreementRef = &AgreementRef{Value: agreement, Pmode: pmodeId}
	}
}

// WithMessageProperty adds a message-level property
func WithMessageProperty(name, value string) Option {
	return func(b *Builder) {
		if b.msg.MessageProperties == nil {
			b.msg.MessageProperties = &MessageProperties{}
		}
		b.msg.MessageProperties.Property = append(b.msg.MessageProperties.Property,
			Property{Name: name, Value: value})
	}
}

// AddPart attaches a payload part and records its PartInfo reference.
// The generated Content-ID carries the MimeType part property so the
// receiver can restore the type after decryption.
func (b *Builder) AddPart(data []byte, contentType string) *Builder {
	contentId := uuid.New().String() + messageIdSuffix

	b.parts = append(b.parts, Part{
		ContentID:   contentId,
		ContentType: contentType,
		Data:        data,
	})

	if b.msg.PayloadInfo == nil {
		b.msg.PayloadInfo = &PayloadInfo{}
	}
	part := PartInfo{Href: "cid:" + contentId}
	part.AddProperty("MimeType", contentType)
	b.msg.PayloadInfo.PartInfo = append(b.msg.PayloadInfo.PartInfo, part)

	return b
}

// AddPartProperty adds a property to the most recently added part
func (b *Builder) AddPartProperty(name, value string) *Builder {
	if b.msg.PayloadInfo == nil || len(b.msg.PayloadInfo.PartInfo) == 0 {
		b.errs = append(b.errs, fmt.Errorf("no payload part to attach property %q to", name))
		return b
	}
	last := &b.msg.PayloadInfo.PartInfo[len(b.msg.PayloadInfo.PartInfo)-1]
	last.AddProperty(name, value)
	return b
}

// Build validates the message and returns it with its parts
func (b *Builder) Build() (*UserMessage, []Part, error) {
	if len(b.errs) > 0 {
		return nil, nil, b.errs[0]
	}
	if len(b.msg.PartyInfo.From.PartyId) == 0 {
		return nil, nil, fmt.Errorf("sender party ID is required")
	}
	if len(b.msg.PartyInfo.To.PartyId) == 0 {
		return nil, nil, fmt.Errorf("receiver party ID is required")
	}
	if b.msg.CollaborationInfo.Service.Value == "" {
		return nil, nil, fmt.Errorf("service is required")
	}
	if b.msg.CollaborationInfo.Action == "" {
		return nil, nil, fmt.Errorf("action is required")
	}
	return b.msg, b.parts, nil
}

// BuildEnvelope wraps the message in a SOAP envelope
func (b *Builder) BuildEnvelope() (*Envelope, []Part, error) {
	msg, parts, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	env := &Envelope{
		Header: &Header{Messaging: &Messaging{UserMessage: msg}},
		Body:   &Body{},
	}
	return env, parts, nil
}

func newSignal(refMessageId string) *SignalMessage {
	return &SignalMessage{
		MessageInfo: &MessageInfo{
			Timestamp:      time.Now().UTC(),
			MessageId:      NewMessageId(),
			RefToMessageId: refMessageId,
		},
	}
}

// NewReceipt builds a receipt signal for the given message. When
// nonRepudiationInfo is non-empty it becomes the receipt content,
// typically the ebbp NonRepudiationInformation element built from the
// original message's signature references.
func NewReceipt(refMessageId string, nonRepudiationInfo []byte) *SignalMessage {
	sig := newSignal(refMessageId)
	sig.Receipt = &Receipt{Any: nonRepudiationInfo}
	return sig
}
