package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/as4core/pkg/message"
)

// Encryptor applies XML encryption for a recipient certificate. One
// content-encryption key is generated per message and wrapped with
// RSA-OAEP-SHA256; data encryption is AES-GCM with the nonce prepended
// to the ciphertext.
type Encryptor struct {
	recipientCert *x509.Certificate
	keyBytes      int
	certRef       CertReferenceType
}

// EncryptorOption configures an Encryptor
type EncryptorOption func(*Encryptor)

// WithAES256 selects AES-256-GCM instead of the AES-128-GCM default
func WithAES256() EncryptorOption {
	return func(e *Encryptor) { e.keyBytes = 32 }
}

// WithCertReference overrides the automatic certificate reference choice
func WithCertReference(ref CertReferenceType) EncryptorOption {
	return func(e *Encryptor) { e.certRef = ref }
}

// NewEncryptor creates an encryptor for the recipient certificate
func NewEncryptor(recipientCert *x509.Certificate, opts ...EncryptorOption) (*Encryptor, error) {
	if recipientCert == nil {
		return nil, secErrf("new encryptor", "recipient certificate is required")
	}
	if _, ok := recipientCert.PublicKey.(*rsa.PublicKey); !ok {
		return nil, secErrf("new encryptor", "recipient certificate does not carry an RSA public key")
	}
	e := &Encryptor{
		recipientCert: recipientCert,
		keyBytes:      16,
		certRef:       CertRefAuto,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EncryptResult is the outcome of an attachment-mode encryption. The
// ciphertext parts replace the caller's plaintext set; the plaintext
// parts must not be reused after a successful call.
type EncryptResult struct {
	// EnvelopeXML is the envelope with EncryptedKey and per-attachment
	// EncryptedData elements added to the Security header
	EnvelopeXML []byte
	// Attachments are the encrypted MIME parts, rewritten to
	// application/octet-stream with binary transfer encoding
	Attachments []message.Part
}

// EncryptAttachments encrypts every attachment with a fresh shared
// content key. The Security header receives the wrapped key first,
// then one EncryptedData per attachment whose CipherReference points
// at the MIME part by cid: URI.
func (e *Encryptor) EncryptAttachments(envelopeXML []byte, attachments []message.Part) (*EncryptResult, error) {
	if len(attachments) == 0 {
		return &EncryptResult{EnvelopeXML: envelopeXML}, nil
	}

	cek, gcm, err := e.newContentKey()
	if err != nil {
		return nil, err
	}
	wrappedKey, err := e.wrapKey(cek)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return nil, secErr("encrypt attachments", fmt.Errorf("parsing envelope: %w", err))
	}
	security, err := securityHeader(doc)
	if err != nil {
		return nil, secErr("encrypt attachments", err)
	}

	encKeyID := "EK-" + generateID()
	dataIDs := make([]string, len(attachments))
	for i := range attachments {
		dataIDs[i] = "ED-" + generateID()
	}

	// EncryptedKey goes first; receivers process the header in
	// document order.
	encKey := e.buildEncryptedKey(encKeyID, wrappedKey, dataIDs)
	security.AddChild(encKey)

	encrypted := make([]message.Part, len(attachments))
	for i, att := range attachments {
		nonce := make([]byte, gcm.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, secErr("encrypt attachments", fmt.Errorf("generating nonce: %w", err))
		}
		ciphertext := gcm.Seal(nil, nonce, att.Data, nil)

		contentID := message.NormalizeContentID(att.ContentID)
		security.AddChild(e.buildAttachmentEncryptedData(dataIDs[i], encKeyID, contentID, att.ContentType))

		encrypted[i] = message.Part{
			ContentID:        contentID,
			ContentType:      EncryptedMimeType,
			TransferEncoding: EncryptedTransferEncoding,
			Data:             append(nonce, ciphertext...),
		}
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, secErr("encrypt attachments", fmt.Errorf("serializing envelope: %w", err))
	}
	return &EncryptResult{EnvelopeXML: out, Attachments: encrypted}, nil
}

// EncryptBody encrypts the SOAP Body content in place. The Body keeps
// its element (and its signed wsu:Id); the children are replaced by an
// xenc:EncryptedData of type Content, and the wrapped key is added to
// the Security header.
func (e *Encryptor) EncryptBody(envelopeXML []byte) ([]byte, error) {
	cek, gcm, err := e.newContentKey()
	if err != nil {
		return nil, err
	}
	wrappedKey, err := e.wrapKey(cek)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return nil, secErr("encrypt body", fmt.Errorf("parsing envelope: %w", err))
	}
	root := doc.Root()
	if root == nil {
		return nil, secErrf("encrypt body", "no root element")
	}
	body := findLocal(root, "./Body")
	if body == nil {
		return nil, secErrf("encrypt body", "SOAP Body not found")
	}
	security, err := securityHeader(doc)
	if err != nil {
		return nil, secErr("encrypt body", err)
	}

	var plain []byte
	for _, child := range body.ChildElements() {
		frag := etree.NewDocument()
		frag.SetRoot(child.Copy())
		data, err := frag.WriteToBytes()
		if err != nil {
			return nil, secErr("encrypt body", fmt.Errorf("serializing body content: %w", err))
		}
		plain = append(plain, data...)
	}
	for _, child := range body.ChildElements() {
		body.RemoveChild(child)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, secErr("encrypt body", fmt.Errorf("generating nonce: %w", err))
	}
	ciphertext := gcm.Seal(nil, nonce, plain, nil)

	encDataID := "ED-" + generateID()
	encKeyID := "EK-" + generateID()

	security.AddChild(e.buildEncryptedKey(encKeyID, wrappedKey, []string{encDataID}))

	encData := etree.NewElement("xenc:EncryptedData")
	encData.CreateAttr("xmlns:xenc", NsXENC)
	encData.CreateAttr("Id", encDataID)
	encData.CreateAttr("Type", XencTypeContent)
	encData.CreateElement("xenc:EncryptionMethod").CreateAttr("Algorithm", e.dataAlgorithmURI())
	e.addEncryptedKeyReference(encData, encKeyID)
	cipherData := encData.CreateElement("xenc:CipherData")
	cipherData.CreateElement("xenc:CipherValue").
		SetText(base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)))
	body.AddChild(encData)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, secErr("encrypt body", fmt.Errorf("serializing envelope: %w", err))
	}
	return out, nil
}

func (e *Encryptor) newContentKey() ([]byte, cipher.AEAD, error) {
	cek := make([]byte, e.keyBytes)
	if _, err := io.ReadFull(rand.Reader, cek); err != nil {
		return nil, nil, secErr("encrypt", fmt.Errorf("generating content key: %w", err))
	}
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, nil, secErr("encrypt", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, secErr("encrypt", err)
	}
	return cek, gcm, nil
}

func (e *Encryptor) wrapKey(cek []byte) ([]byte, error) {
	pub := e.recipientCert.PublicKey.(*rsa.PublicKey)
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, cek, nil)
	if err != nil {
		return nil, secErr("encrypt", fmt.Errorf("wrapping content key: %w", err))
	}
	return wrapped, nil
}

func (e *Encryptor) buildEncryptedKey(id string, wrappedKey []byte, dataIDs []string) *etree.Element {
	encKey := etree.NewElement("xenc:EncryptedKey")
	encKey.CreateAttr("xmlns:xenc", NsXENC)
	encKey.CreateAttr("Id", id)

	method := encKey.CreateElement("xenc:EncryptionMethod")
	method.CreateAttr("Algorithm", AlgorithmRSAOAEP)
	digest := method.CreateElement("ds:DigestMethod")
	digest.CreateAttr("xmlns:ds", NsDS)
	digest.CreateAttr("Algorithm", AlgorithmSHA256)
	mgf := method.CreateElement("xenc11:MGF")
	mgf.CreateAttr("xmlns:xenc11", NsXENC11)
	mgf.CreateAttr("Algorithm", AlgorithmMGF1SHA256)

	keyInfo := encKey.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", NsDS)
	bstID := "X509-" + generateID()
	refType := ResolveCertRefType(e.certRef, e.recipientCert)
	// addCertificateReference only fails for unknown methods; refType
	// is already resolved here.
	_ = addCertificateReference(keyInfo, e.recipientCert, refType, bstID)

	cipherData := encKey.CreateElement("xenc:CipherData")
	cipherData.CreateElement("xenc:CipherValue").
		SetText(base64.StdEncoding.EncodeToString(wrappedKey))

	refList := encKey.CreateElement("xenc:ReferenceList")
	for _, dataID := range dataIDs {
		refList.CreateElement("xenc:DataReference").CreateAttr("URI", "#"+dataID)
	}
	return encKey
}

func (e *Encryptor) buildAttachmentEncryptedData(id, encKeyID, contentID, mimeType string) *etree.Element {
	encData := etree.NewElement("xenc:EncryptedData")
	encData.CreateAttr("xmlns:xenc", NsXENC)
	encData.CreateAttr("Id", id)
	encData.CreateAttr("MimeType", mimeType)
	encData.CreateAttr("Type", SwAAttachmentContentOnly)

	encData.CreateElement("xenc:EncryptionMethod").CreateAttr("Algorithm", e.dataAlgorithmURI())
	e.addEncryptedKeyReference(encData, encKeyID)

	cipherData := encData.CreateElement("xenc:CipherData")
	cipherRef := cipherData.CreateElement("xenc:CipherReference")
	cipherRef.CreateAttr("URI", "cid:"+contentID)
	transforms := cipherRef.CreateElement("xenc:Transforms")
	transform := transforms.CreateElement("ds:Transform")
	transform.CreateAttr("xmlns:ds", NsDS)
	transform.CreateAttr("Algorithm", SwACiphertextTransform)

	return encData
}

func (e *Encryptor) addEncryptedKeyReference(encData *etree.Element, encKeyID string) {
	keyInfo := encData.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", NsDS)
	str := keyInfo.CreateElement("wsse:SecurityTokenReference")
	str.CreateAttr("xmlns:wsse", NsWSSE)
	str.CreateAttr("xmlns:wsse11", NsWSSE11)
	str.CreateAttr("wsse11:TokenType", ValueTypeEncryptedKey)
	ref := str.CreateElement("wsse:Reference")
	ref.CreateAttr("URI", "#"+encKeyID)
}

func (e *Encryptor) dataAlgorithmURI() string {
	if e.keyBytes == 32 {
		return AlgorithmAES256GCM
	}
	return AlgorithmAES128GCM
}

// securityHeader finds the wsse:Security element, creating it with
// env:mustUnderstand when absent
func securityHeader(doc *etree.Document) (*etree.Element, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	header := findLocal(root, "./Header")
	if header == nil {
		return nil, fmt.Errorf("SOAP Header not found")
	}
	security := findLocal(header, "./Security")
	if security == nil {
		ensureNamespaces(root)
		security = header.CreateElement("wsse:Security")
		security.CreateAttr("env:mustUnderstand", "true")
	}
	return security, nil
}
