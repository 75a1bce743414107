package security

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"

	"github.com/sirosfoundation/as4core/pkg/message"
)

// Signer produces and verifies WS-Security XML signatures over SOAP
// envelopes and their MIME attachments. All signature operations go
// through the signedxml library.
type Signer struct {
	privateKey *rsa.PrivateKey
	cert       *x509.Certificate
	sigHash    crypto.Hash
	digestHash crypto.Hash
	tokenRef   CertReferenceType
}

// SignerOption configures a Signer
type SignerOption func(*Signer)

// WithSignatureHash overrides the SHA-256 default for the signature
func WithSignatureHash(h crypto.Hash) SignerOption {
	return func(s *Signer) { s.sigHash = h }
}

// WithDigestHash overrides the SHA-256 default for reference digests
func WithDigestHash(h crypto.Hash) SignerOption {
	return func(s *Signer) { s.digestHash = h }
}

// WithTokenReference overrides the BinarySecurityToken default
func WithTokenReference(ref CertReferenceType) SignerOption {
	return func(s *Signer) { s.tokenRef = ref }
}

// NewSigner creates a signer for the given RSA key pair
func NewSigner(privateKey *rsa.PrivateKey, cert *x509.Certificate, opts ...SignerOption) (*Signer, error) {
	if cert == nil {
		return nil, secErrf("new signer", "certificate is required")
	}
	if _, ok := cert.PublicKey.(*rsa.PublicKey); !ok {
		return nil, secErrf("new signer", "certificate does not carry an RSA public key")
	}
	s := &Signer{
		privateKey: privateKey,
		cert:       cert,
		sigHash:    crypto.SHA256,
		digestHash: crypto.SHA256,
		tokenRef:   CertRefBSTDirectReference,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewVerifier creates a verify-only signer from a certificate
func NewVerifier(cert *x509.Certificate, opts ...SignerOption) (*Signer, error) {
	return NewSigner(nil, cert, opts...)
}

// SignEnvelope signs the envelope together with its attachments. The
// signature covers the wsu:Timestamp, the SOAP Body, the Messaging
// header when present, and one cid: reference per attachment. The
// wsse:Security header is created with env:mustUnderstand set.
func (s *Signer) SignEnvelope(envelopeXML []byte, attachments []message.Part) ([]byte, error) {
	if s.privateKey == nil {
		return nil, secErrf("sign", "private key is required for signing")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return nil, secErr("sign", fmt.Errorf("parsing envelope: %w", err))
	}
	root := doc.Root()
	if root == nil {
		return nil, secErrf("sign", "no root element")
	}
	ensureNamespaces(root)

	header := findLocal(root, "./Header")
	if header == nil {
		return nil, secErrf("sign", "SOAP Header not found")
	}
	security := findLocal(header, "./Security")
	if security == nil {
		security = header.CreateElement("wsse:Security")
		security.CreateAttr("env:mustUnderstand", "true")
	}

	bstID := "X509-" + generateID()
	if s.tokenRef == CertRefBSTDirectReference {
		bst := security.CreateElement("wsse:BinarySecurityToken")
		bst.CreateAttr("wsu:Id", bstID)
		bst.CreateAttr("EncodingType", EncodingBase64)
		bst.CreateAttr("ValueType", ValueTypeX509v3)
		bst.SetText(base64.StdEncoding.EncodeToString(s.cert.Raw))
	}

	timestampID := "TS-" + generateID()
	timestamp := security.CreateElement("wsu:Timestamp")
	timestamp.CreateAttr("wsu:Id", timestampID)
	now := time.Now().UTC()
	timestamp.CreateElement("wsu:Created").SetText(now.Format("2006-01-02T15:04:05.000Z"))
	timestamp.CreateElement("wsu:Expires").SetText(now.Add(5 * time.Minute).Format("2006-01-02T15:04:05.000Z"))

	body := findLocal(root, "./Body")
	if body == nil {
		return nil, secErrf("sign", "SOAP Body not found")
	}
	bodyID := getOrCreateWSUId(body)

	messaging := findLocal(header, "./Messaging")
	var messagingID string
	if messaging != nil {
		if messaging.SelectAttrValue("env:mustUnderstand", "") == "" {
			messaging.CreateAttr("env:mustUnderstand", "true")
		}
		messagingID = getOrCreateWSUId(messaging)
	}

	sig := security.CreateElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", NsDS)

	signedInfo := sig.CreateElement("ds:SignedInfo")
	c14n := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14n.CreateAttr("Algorithm", NsExcC14N)
	inclNS := c14n.CreateElement("ec:InclusiveNamespaces")
	inclNS.CreateAttr("xmlns:ec", NsExcC14N)
	inclNS.CreateAttr("PrefixList", "env")

	sigMethod := signedInfo.CreateElement("ds:SignatureMethod")
	sigMethod.CreateAttr("Algorithm", s.signatureAlgorithmURI())

	s.addReference(signedInfo, timestampID, "")
	s.addReference(signedInfo, bodyID, "")
	if messaging != nil {
		s.addReference(signedInfo, messagingID, "env")
	}
	for _, att := range attachments {
		s.addAttachmentReference(signedInfo, att)
	}

	sig.CreateElement("ds:SignatureValue").SetText("placeholder")

	keyInfo := sig.CreateElement("ds:KeyInfo")
	if err := addCertificateReference(keyInfo, s.cert, ResolveCertRefType(s.tokenRef, s.cert), bstID); err != nil {
		return nil, secErr("sign", err)
	}

	xmlStr, err := doc.WriteToString()
	if err != nil {
		return nil, secErr("sign", fmt.Errorf("serializing envelope: %w", err))
	}

	signer, err := signedxml.NewSigner(xmlStr)
	if err != nil {
		return nil, secErr("sign", err)
	}
	signer.SetReferenceIDAttribute("wsu:Id")

	signedXML, err := signer.Sign(s.privateKey)
	if err != nil {
		return nil, secErr("sign", err)
	}
	return []byte(signedXML), nil
}

// VerifyEnvelope validates the XML signature and checks the digest of
// every signed attachment against the supplied parts. A missing or
// altered attachment fails verification.
func (s *Signer) VerifyEnvelope(envelopeXML []byte, attachments []message.Part) error {
	validator, err := signedxml.NewValidator(string(envelopeXML))
	if err != nil {
		return secErr("verify", err)
	}
	validator.Certificates = append(validator.Certificates, *s.cert)
	validator.SetReferenceIDAttribute("wsu:Id")

	if _, err := validator.ValidateReferences(); err != nil {
		return secErr("verify", fmt.Errorf("signature validation failed: %w", err))
	}

	return s.verifyAttachmentDigests(envelopeXML, attachments)
}

func (s *Signer) verifyAttachmentDigests(envelopeXML []byte, attachments []message.Part) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return secErr("verify", fmt.Errorf("parsing signed envelope: %w", err))
	}

	byID := make(map[string][]byte, len(attachments))
	for _, att := range attachments {
		byID[message.NormalizeContentID(att.ContentID)] = att.Data
	}

	for _, ref := range doc.FindElements("//*[local-name()='Reference']") {
		uri := ref.SelectAttrValue("URI", "")
		if len(uri) < 4 || uri[:4] != "cid:" {
			continue
		}
		contentID := message.NormalizeContentID(uri)
		data, ok := byID[contentID]
		if !ok {
			return secErrf("verify", "signed attachment %s not present", contentID)
		}
		dv := ref.FindElement("./*[local-name()='DigestValue']")
		if dv == nil {
			return secErrf("verify", "attachment reference %s has no digest", contentID)
		}
		sum := sha256.Sum256(data)
		if base64.StdEncoding.EncodeToString(sum[:]) != dv.Text() {
			return secErrf("verify", "attachment %s digest mismatch", contentID)
		}
	}
	return nil
}

func (s *Signer) addReference(signedInfo *etree.Element, id, prefixList string) {
	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "#"+id)

	transforms := ref.CreateElement("ds:Transforms")
	transform := transforms.CreateElement("ds:Transform")
	transform.CreateAttr("Algorithm", NsExcC14N)
	if prefixList != "" {
		inclNS := transform.CreateElement("ec:InclusiveNamespaces")
		inclNS.CreateAttr("xmlns:ec", NsExcC14N)
		inclNS.CreateAttr("PrefixList", prefixList)
	}

	ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", s.digestAlgorithmURI())
	// signedxml fills the digest in during Sign()
	ref.CreateElement("ds:DigestValue").SetText("placeholder")
}

func (s *Signer) addAttachmentReference(signedInfo *etree.Element, att message.Part) {
	sum := sha256.Sum256(att.Data)

	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "cid:"+message.NormalizeContentID(att.ContentID))

	transforms := ref.CreateElement("ds:Transforms")
	transform := transforms.CreateElement("ds:Transform")
	transform.CreateAttr("Algorithm", SwAContentSignatureTransform)

	ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", s.digestAlgorithmURI())
	ref.CreateElement("ds:DigestValue").SetText(base64.StdEncoding.EncodeToString(sum[:]))
}

func (s *Signer) signatureAlgorithmURI() string {
	switch s.sigHash {
	case crypto.SHA384:
		return AlgorithmRSASHA384
	case crypto.SHA512:
		return AlgorithmRSASHA512
	default:
		return AlgorithmRSASHA256
	}
}

func (s *Signer) digestAlgorithmURI() string {
	switch s.digestHash {
	case crypto.SHA384:
		return AlgorithmSHA384
	case crypto.SHA512:
		return AlgorithmSHA512
	default:
		return AlgorithmSHA256
	}
}

func ensureNamespaces(root *etree.Element) {
	if root.SelectAttr("xmlns:env") == nil {
		root.CreateAttr("xmlns:env", "http://www.w3.org/2003/05/soap-envelope")
	}
	if root.SelectAttr("xmlns:wsu") == nil {
		root.CreateAttr("xmlns:wsu", NsWSU)
	}
	if root.SelectAttr("xmlns:wsse") == nil {
		root.CreateAttr("xmlns:wsse", NsWSSE)
	}
}

func findLocal(parent *etree.Element, path string) *etree.Element {
	if elem := parent.FindElement(path); elem != nil {
		return elem
	}
	local := path[len("./"):]
	return parent.FindElement("./*[local-name()='" + local + "']")
}

func getOrCreateWSUId(elem *etree.Element) string {
	id := elem.SelectAttrValue("wsu:Id", "")
	if id == "" {
		for _, attr := range elem.Attr {
			if attr.Key == "wsu:Id" || attr.FullKey() == "{"+NsWSU+"}Id" {
				id = attr.Value
				break
			}
		}
	}
	if id == "" {
		id = "id-" + generateID()
		elem.CreateAttr("wsu:Id", id)
	}
	return id
}
