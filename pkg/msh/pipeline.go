package msh

import (
	"context"
	"crypto"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sirosfoundation/as4core/pkg/compression"
	"github.com/sirosfoundation/as4core/pkg/message"
	"github.com/sirosfoundation/as4core/pkg/mime"
	"github.com/sirosfoundation/as4core/pkg/pmode"
	"github.com/sirosfoundation/as4core/pkg/reliability"
	"github.com/sirosfoundation/as4core/pkg/security"
	"github.com/sirosfoundation/as4core/pkg/worker"
)

// Pipeline orchestrates the secure message flow. It keeps no mutable
// state across calls; every invocation owns its envelope exclusively,
// so concurrent Submit and Receive calls are safe.
type Pipeline struct {
	store      *pmode.Store
	suppressor *reliability.DuplicateSuppressor
	pool       *worker.Pool
	compressor *compression.Compressor
	material   Material
	revocation security.RevocationChecker
	logger     *slog.Logger

	handler     ReceivedHandler
	sendReceipt ReceiptSender
}

// Config wires a Pipeline. Store and Material.LocalKey/LocalCert are
// required; the rest is optional and disables the matching stage when
// absent.
type Config struct {
	Store      *pmode.Store
	Suppressor *reliability.DuplicateSuppressor
	Pool       *worker.Pool
	Material   Material
	Logger     *slog.Logger

	// Revocation, when set, checks the partner certificate before any
	// inbound signature is trusted
	Revocation security.RevocationChecker

	Handler       ReceivedHandler
	ReceiptSender ReceiptSender
}

// NewPipeline creates a pipeline
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, errors.New("pmode store is required")
	}
	if cfg.Material.LocalKey == nil || cfg.Material.LocalCert == nil {
		return nil, errors.New("local key material is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:       cfg.Store,
		suppressor:  cfg.Suppressor,
		pool:        cfg.Pool,
		compressor:  compression.NewCompressor(),
		material:    cfg.Material,
		revocation:  cfg.Revocation,
		logger:      logger.With("component", "msh"),
		handler:     cfg.Handler,
		sendReceipt: cfg.ReceiptSender,
	}, nil
}

// Submit builds, secures and packages an outbound message according to
// the resolved processing mode.
func (p *Pipeline) Submit(ctx context.Context, req *OutboundRequest) (*TransportMessage, error) {
	res, err := p.store.Resolve(req.PModeID)
	if err != nil {
		return nil, fmt.Errorf("resolving pmode %q: %w", req.PModeID, err)
	}
	pm := res.PMode

	builder := message.NewUserMessage(
		message.WithFrom(req.FromParty, req.FromPartyType),
		message.WithTo(req.ToParty, req.ToPartyType),
		message.WithService(req.Service),
		message.WithAction(req.Action),
	)
	if req.ConversationID != "" {
		message.WithConversationId(req.ConversationID)(builder)
	}
	if req.RefToMessageID != "" {
		message.WithRefToMessageId(req.RefToMessageID)(builder)
	}
	if pm.Agreement != "" || pm.ID != "" {
		message.WithAgreement(pm.Agreement, pm.ID)(builder)
	}
	for _, payload := range req.Payloads {
		builder.AddPart(payload.Data, payload.ContentType)
	}

	env, parts, err := builder.BuildEnvelope()
	if err != nil {
		return nil, fmt.Errorf("building message: %w", err)
	}
	msg := env.Header.Messaging.UserMessage

	if pm.Payload.CompressPayloads {
		parts, err = p.compressor.CompressParts(msg, parts)
		if err != nil {
			return nil, fmt.Errorf("compressing payloads: %w", err)
		}
	}

	envelopeXML, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("serializing envelope: %w", err)
	}
	envelopeXML = append([]byte(xml.Header), envelopeXML...)

	// Sign first; the signed result is then encrypted, so receipt
	// processing decrypts before verifying.
	if pm.Security.Sign {
		signer, err := security.NewSigner(p.material.LocalKey, p.material.LocalCert,
			signerOptions(&pm.Security)...)
		if err != nil {
			return nil, err
		}
		envelopeXML, err = signer.SignEnvelope(envelopeXML, parts)
		if err != nil {
			return nil, err
		}
	}

	if pm.Security.Encrypt {
		if p.material.PartnerCert == nil {
			return nil, errors.New("partner certificate is required for encryption")
		}
		encryptor, err := security.NewEncryptor(p.material.PartnerCert, encryptorOptions(&pm.Security)...)
		if err != nil {
			return nil, err
		}
		if pm.Security.EncryptionMode == pmode.EncryptAttachments && len(parts) > 0 {
			result, err := encryptor.EncryptAttachments(envelopeXML, parts)
			if err != nil {
				return nil, err
			}
			envelopeXML, parts = result.EnvelopeXML, result.Attachments
		} else {
			envelopeXML, err = encryptor.EncryptBody(envelopeXML)
			if err != nil {
				return nil, err
			}
		}
	}

	pkg := mime.NewPackage(envelopeXML)
	for _, part := range parts {
		pkg.AddPart(part)
	}
	body, err := pkg.Pack()
	if err != nil {
		return nil, fmt.Errorf("packaging message: %w", err)
	}

	p.logger.Info("message submitted",
		"message_id", msg.MessageInfo.MessageId,
		"pmode", pm.ID,
		"via_default", res.ViaDefault,
		"parts", len(parts),
		"signed", pm.Security.Sign,
		"encrypted", pm.Security.Encrypt)

	return &TransportMessage{
		MessageID:   msg.MessageInfo.MessageId,
		ContentType: pkg.ContentType(),
		Body:        body,
	}, nil
}

// Receive unpacks, decrypts, verifies and gates an inbound transport
// message. Accepted user messages trigger receipt generation and
// handler delivery on the worker pool; the caller gets the processed
// result without waiting for either.
func (p *Pipeline) Receive(ctx context.Context, body []byte, contentType string) (*InboundResult, error) {
	envelopeXML, parts, err := unpackTransport(body, contentType)
	if err != nil {
		return nil, err
	}

	// Decrypt before verifying; the sender signed the plaintext.
	if security.IsEncrypted(envelopeXML) {
		decryptor, err := security.NewDecryptor(p.material.LocalKey)
		if err != nil {
			return nil, err
		}
		if len(parts) > 0 {
			parts, err = decryptor.DecryptAttachments(envelopeXML, parts)
			if err != nil {
				return nil, err
			}
		}
		if security.IsBodyEncrypted(envelopeXML) {
			envelopeXML, err = decryptor.DecryptBody(envelopeXML)
			if err != nil {
				return nil, err
			}
		}
	}

	var env message.Envelope
	if err := xml.Unmarshal(envelopeXML, &env); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}
	if env.Header == nil || env.Header.Messaging == nil {
		return nil, errors.New("envelope carries no Messaging header")
	}
	messaging := env.Header.Messaging

	if messaging.SignalMessage != nil && messaging.UserMessage == nil {
		return &InboundResult{Signal: messaging.SignalMessage}, nil
	}
	msg := messaging.UserMessage
	if msg == nil || msg.MessageInfo == nil {
		return nil, errors.New("envelope carries no user message")
	}

	pmodeID := ""
	if msg.CollaborationInfo != nil && msg.CollaborationInfo.AgreementRef != nil {
		pmodeID = msg.CollaborationInfo.AgreementRef.Pmode
	}
	res, err := p.store.Resolve(pmodeID)
	if err != nil {
		return nil, fmt.Errorf("resolving pmode %q: %w", pmodeID, err)
	}
	pm := res.PMode

	signed := security.IsSigned(envelopeXML)
	if pm.Security.Sign && !signed {
		return nil, ErrSignatureMissing
	}
	if signed {
		if p.material.PartnerCert == nil {
			return nil, errors.New("partner certificate is required for verification")
		}
		if p.revocation != nil {
			issuer := p.material.PartnerIssuer
			if issuer == nil {
				issuer = p.material.PartnerCert
			}
			if err := p.revocation.CheckRevocation(ctx, p.material.PartnerCert, issuer); err != nil {
				return nil, fmt.Errorf("checking partner certificate: %w", err)
			}
		}
		verifier, err := security.NewVerifier(p.material.PartnerCert)
		if err != nil {
			return nil, err
		}
		if err := verifier.VerifyEnvelope(envelopeXML, parts); err != nil {
			return nil, err
		}
	}

	parts, err = p.compressor.DecompressParts(msg, parts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", message.ErrDecompressionFailure.Code, err)
	}

	messageID := msg.MessageInfo.MessageId
	if pm.Reliability.DuplicateDetection && p.suppressor != nil {
		if p.suppressor.CheckAndRecord(messageID) == reliability.Duplicate {
			p.logger.Warn("duplicate message rejected", "message_id", messageID)
			return nil, &reliability.DuplicateMessageError{MessageID: messageID}
		}
	}

	result := &InboundResult{
		UserMessage:     msg,
		Parts:           parts,
		PMode:           pm,
		ViaDefaultPMode: res.ViaDefault,
	}

	p.dispatchReceipt(messageID, envelopeXML, pm)
	if p.handler != nil && p.pool != nil {
		if err := p.pool.Run(func() error {
			p.handler(result)
			return nil
		}); err != nil {
			p.logger.Error("handler dispatch rejected", "message_id", messageID, "error", err)
		}
	}

	p.logger.Info("message received",
		"message_id", messageID,
		"pmode", pm.ID,
		"via_default", res.ViaDefault,
		"parts", len(parts),
		"signed", signed)

	return result, nil
}

// BuildErrorSignal packages an ebMS error signal for transmission back
// to the sender, e.g. an EBMS:0004 for a rejected duplicate.
func (p *Pipeline) BuildErrorSignal(spec message.ErrorSpec, refMessageID, detail string) (*TransportMessage, error) {
	sig := message.NewErrorSignal(spec, refMessageID, detail)
	return p.packSignal(sig)
}

func (p *Pipeline) dispatchReceipt(messageID string, envelopeXML []byte, pm *pmode.ProcessingMode) {
	if p.sendReceipt == nil || p.pool == nil {
		return
	}
	err := p.pool.Run(func() error {
		receipt, err := p.buildReceipt(messageID, envelopeXML, pm)
		if err != nil {
			return fmt.Errorf("building receipt for %s: %w", messageID, err)
		}
		if err := p.sendReceipt(receipt); err != nil {
			return fmt.Errorf("sending receipt for %s: %w", messageID, err)
		}
		return nil
	})
	if err != nil {
		p.logger.Error("receipt dispatch rejected", "message_id", messageID, "error", err)
	}
}

func (p *Pipeline) packSignal(sig *message.SignalMessage) (*TransportMessage, error) {
	env := &message.Envelope{
		Header: &message.Header{Messaging: &message.Messaging{SignalMessage: sig}},
		Body:   &message.Body{},
	}
	envelopeXML, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("serializing signal: %w", err)
	}
	envelopeXML = append([]byte(xml.Header), envelopeXML...)

	pkg := mime.NewPackage(envelopeXML)
	body, err := pkg.Pack()
	if err != nil {
		return nil, fmt.Errorf("packaging signal: %w", err)
	}
	return &TransportMessage{
		MessageID:   sig.MessageInfo.MessageId,
		ContentType: pkg.ContentType(),
		Body:        body,
	}, nil
}

func unpackTransport(body []byte, contentType string) ([]byte, []message.Part, error) {
	if strings.HasPrefix(contentType, "multipart/") {
		pkg, err := mime.Unpack(body, contentType)
		if err != nil {
			return nil, nil, fmt.Errorf("unpacking message: %w", err)
		}
		return pkg.Envelope, pkg.Parts, nil
	}
	// bare SOAP envelope without attachments
	return body, nil, nil
}

func signerOptions(sec *pmode.Security) []security.SignerOption {
	var opts []security.SignerOption
	switch sec.SignatureAlgorithm {
	case pmode.SignatureRSASHA384:
		opts = append(opts, security.WithSignatureHash(crypto.SHA384))
	case pmode.SignatureRSASHA512:
		opts = append(opts, security.WithSignatureHash(crypto.SHA512))
	}
	switch sec.DigestAlgorithm {
	case pmode.DigestSHA384:
		opts = append(opts, security.WithDigestHash(crypto.SHA384))
	case pmode.DigestSHA512:
		opts = append(opts, security.WithDigestHash(crypto.SHA512))
	}
	return opts
}

func encryptorOptions(sec *pmode.Security) []security.EncryptorOption {
	var opts []security.EncryptorOption
	if sec.DataEncryption == pmode.EncryptionAES256GCM {
		opts = append(opts, security.WithAES256())
	}
	return opts
}
