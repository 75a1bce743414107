package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/as4core/pkg/message"
)

// Decryptor unwraps content keys with the receiver's RSA private key
// and decrypts body or attachment ciphertext
type Decryptor struct {
	privateKey *rsa.PrivateKey
}

// NewDecryptor creates a decryptor for the given private key
func NewDecryptor(privateKey *rsa.PrivateKey) (*Decryptor, error) {
	if privateKey == nil {
		return nil, secErrf("new decryptor", "private key is required")
	}
	return &Decryptor{privateKey: privateKey}, nil
}

// IsEncrypted reports whether the envelope carries an EncryptedKey
func IsEncrypted(envelopeXML []byte) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return false
	}
	return doc.FindElement("//*[local-name()='EncryptedKey']") != nil
}

// IsBodyEncrypted reports whether the SOAP Body carries an
// EncryptedData element
func IsBodyEncrypted(envelopeXML []byte) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return false
	}
	root := doc.Root()
	if root == nil {
		return false
	}
	body := findLocal(root, "./Body")
	if body == nil {
		return false
	}
	return body.FindElement("./*[local-name()='EncryptedData']") != nil
}

// IsSigned reports whether the envelope carries an XML signature
func IsSigned(envelopeXML []byte) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return false
	}
	return doc.FindElement("//*[local-name()='Signature']") != nil
}

// DecryptAttachments restores the plaintext of every attachment that
// has an EncryptedData entry in the Security header. The returned parts
// keep the input order; the MIME type recorded at encryption time is
// restored and the transfer encoding reset to 8bit. Parts without an
// EncryptedData entry pass through untouched.
func (d *Decryptor) DecryptAttachments(envelopeXML []byte, attachments []message.Part) ([]message.Part, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return nil, secErr("decrypt attachments", fmt.Errorf("parsing envelope: %w", err))
	}

	gcm, err := d.contentCipher(doc)
	if err != nil {
		return nil, err
	}

	// Map cid -> (EncryptedData MimeType) for every attachment entry.
	type encEntry struct{ mimeType string }
	entries := make(map[string]encEntry)
	for _, encData := range doc.FindElements("//*[local-name()='EncryptedData']") {
		cipherRef := encData.FindElement(".//*[local-name()='CipherReference']")
		if cipherRef == nil {
			continue
		}
		uri := cipherRef.SelectAttrValue("URI", "")
		if !strings.HasPrefix(uri, "cid:") {
			continue
		}
		entries[message.NormalizeContentID(uri)] = encEntry{
			mimeType: encData.SelectAttrValue("MimeType", ""),
		}
	}

	out := make([]message.Part, len(attachments))
	for i, att := range attachments {
		contentID := message.NormalizeContentID(att.ContentID)
		entry, ok := entries[contentID]
		if !ok {
			out[i] = att
			continue
		}

		plain, err := gcmOpen(gcm, att.Data)
		if err != nil {
			return nil, secErr("decrypt attachments", fmt.Errorf("attachment %s: %w", contentID, err))
		}

		mimeType := entry.mimeType
		if mimeType == "" {
			mimeType = EncryptedMimeType
		}
		out[i] = message.Part{
			ContentID:        contentID,
			ContentType:      mimeType,
			TransferEncoding: "8bit",
			Data:             plain,
		}
	}
	return out, nil
}

// DecryptBody restores the plaintext Body content of a body-encrypted
// envelope and strips the consumed EncryptedKey from the Security
// header. The Body element itself, including its signed wsu:Id, is left
// in place.
func (d *Decryptor) DecryptBody(envelopeXML []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return nil, secErr("decrypt body", fmt.Errorf("parsing envelope: %w", err))
	}
	root := doc.Root()
	if root == nil {
		return nil, secErrf("decrypt body", "no root element")
	}
	body := findLocal(root, "./Body")
	if body == nil {
		return nil, secErrf("decrypt body", "SOAP Body not found")
	}
	encData := body.FindElement("./*[local-name()='EncryptedData']")
	if encData == nil {
		return nil, secErrf("decrypt body", "Body carries no EncryptedData")
	}

	gcm, err := d.contentCipher(doc)
	if err != nil {
		return nil, err
	}

	cipherValue := encData.FindElement(".//*[local-name()='CipherValue']")
	if cipherValue == nil {
		return nil, secErrf("decrypt body", "EncryptedData has no CipherValue")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cipherValue.Text()))
	if err != nil {
		return nil, secErr("decrypt body", fmt.Errorf("decoding cipher value: %w", err))
	}
	plain, err := gcmOpen(gcm, ciphertext)
	if err != nil {
		return nil, secErr("decrypt body", err)
	}

	frag := etree.NewDocument()
	if err := frag.ReadFromString("<w>" + string(plain) + "</w>"); err != nil {
		return nil, secErr("decrypt body", fmt.Errorf("parsing decrypted content: %w", err))
	}

	body.RemoveChild(encData)
	for _, child := range frag.Root().ChildElements() {
		body.AddChild(child.Copy())
	}

	if security := doc.FindElement("//*[local-name()='Security']"); security != nil {
		if encKey := security.FindElement("./*[local-name()='EncryptedKey']"); encKey != nil {
			security.RemoveChild(encKey)
		}
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, secErr("decrypt body", fmt.Errorf("serializing envelope: %w", err))
	}
	return out, nil
}

// contentCipher unwraps the content key from the envelope's
// EncryptedKey element
func (d *Decryptor) contentCipher(doc *etree.Document) (cipher.AEAD, error) {
	encKey := doc.FindElement("//*[local-name()='EncryptedKey']")
	if encKey == nil {
		return nil, secErrf("decrypt", "no EncryptedKey in envelope")
	}
	cipherValue := encKey.FindElement(".//*[local-name()='CipherValue']")
	if cipherValue == nil {
		return nil, secErrf("decrypt", "EncryptedKey has no CipherValue")
	}
	wrapped, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cipherValue.Text()))
	if err != nil {
		return nil, secErr("decrypt", fmt.Errorf("decoding wrapped key: %w", err))
	}

	cek, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, d.privateKey, wrapped, nil)
	if err != nil {
		return nil, secErr("decrypt", fmt.Errorf("unwrapping content key: %w", err))
	}
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, secErr("decrypt", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, secErr("decrypt", err)
	}
	return gcm, nil
}

func gcmOpen(gcm cipher.AEAD, data []byte) ([]byte, error) {
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plain, nil
}
