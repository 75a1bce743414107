package security

import (
	"crypto/rand"
	"encoding/hex"
)

// WS-Security and XML security namespaces
const (
	NsWSSE   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NsWSSE11 = "http://docs.oasis-open.org/wss/oasis-wss-wssecurity-secext-1.1.xsd"
	NsWSU    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NsDS     = "http://www.w3.org/2000/09/xmldsig#"
	NsXENC   = "http://www.w3.org/2001/04/xmlenc#"
	NsXENC11 = "http://www.w3.org/2009/xmlenc11#"
	NsExcC14N = "http://www.w3.org/2001/10/xml-exc-c14n#"
)

// Signature and digest algorithm URIs
const (
	AlgorithmRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgorithmRSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	AlgorithmRSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
	AlgorithmSHA256    = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgorithmSHA384    = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	AlgorithmSHA512    = "http://www.w3.org/2001/04/xmlenc#sha512"
)

// Encryption algorithm URIs (Basic128GCMSha256MgfSha256 suite and the
// 256-bit variant)
const (
	AlgorithmAES128GCM  = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgorithmAES256GCM  = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
	AlgorithmRSAOAEP    = "http://www.w3.org/2009/xmlenc11#rsa-oaep"
	AlgorithmMGF1SHA256 = "http://www.w3.org/2009/xmlenc11#mgf1sha256"
)

// WS-Security token profile URIs
const (
	EncodingBase64  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
	ValueTypeX509v3 = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509v3"
	ValueTypeSKI    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509SubjectKeyIdentifier"
	ValueTypeThumbprint   = "http://docs.oasis-open.org/wss/oasis-wss-soap-message-security-1.1#ThumbprintSHA1"
	ValueTypeEncryptedKey = "http://docs.oasis-open.org/wss/oasis-wss-soap-message-security-1.1#EncryptedKey"
)

// SwA profile URIs
const (
	SwAContentSignatureTransform = "http://docs.oasis-open.org/wss/oasis-wss-SwAProfile-1.1#Attachment-Content-Signature-Transform"
	SwACiphertextTransform       = "http://docs.oasis-open.org/wss/oasis-wss-SwAProfile-1.1#Attachment-Ciphertext-Transform"
	SwAAttachmentContentOnly     = "http://docs.oasis-open.org/wss/oasis-wss-SwAProfile-1.1#Attachment-Content-Only"
)

// XML-Enc type URI for in-place body content encryption
const XencTypeContent = "http://www.w3.org/2001/04/xmlenc#Content"

// MIME settings applied to every encrypted attachment
const (
	EncryptedMimeType         = "application/octet-stream"
	EncryptedTransferEncoding = "binary"
)

// generateID produces a random hex ID for wsu:Id and xenc Id attributes
func generateID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
