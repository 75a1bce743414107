package security

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/as4core/pkg/message"
)

func generateTestCert(t *testing.T, privateKey *rsa.PrivateKey) *x509.Certificate {
	t.Helper()

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Organization"},
			CommonName:   "test.example.com",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(certDER)
	require.NoError(t, err)
	return cert
}

func testKeyPair(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, generateTestCert(t, key)
}

const testEnvelopeXML = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
    <env:Header>
        <eb:Messaging xmlns:eb="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
            <eb:UserMessage>
                <eb:MessageInfo>
                    <eb:MessageId>test-message-123@as4core</eb:MessageId>
                    <eb:Timestamp>2026-01-01T00:00:00Z</eb:Timestamp>
                </eb:MessageInfo>
            </eb:UserMessage>
        </eb:Messaging>
    </env:Header>
    <env:Body>
        <Order xmlns="urn:test:order"><Id>42</Id></Order>
    </env:Body>
</env:Envelope>`

func TestSignAndVerifyEnvelope(t *testing.T) {
	key, cert := testKeyPair(t)
	signer, err := NewSigner(key, cert)
	require.NoError(t, err)

	signed, err := signer.SignEnvelope([]byte(testEnvelopeXML), nil)
	require.NoError(t, err)

	signedStr := string(signed)
	assert.Contains(t, signedStr, "SignatureValue")
	assert.Contains(t, signedStr, "BinarySecurityToken")
	assert.Contains(t, signedStr, AlgorithmRSASHA256)
	assert.Contains(t, signedStr, `env:mustUnderstand="true"`)
	assert.Contains(t, signedStr, "wsu:Timestamp")

	require.NoError(t, signer.VerifyEnvelope(signed, nil))
}

func TestVerifyTamperedEnvelope(t *testing.T) {
	key, cert := testKeyPair(t)
	signer, err := NewSigner(key, cert)
	require.NoError(t, err)

	signed, err := signer.SignEnvelope([]byte(testEnvelopeXML), nil)
	require.NoError(t, err)

	tampered := bytes.Replace(signed, []byte("<Id>42</Id>"), []byte("<Id>43</Id>"), 1)
	require.NotEqual(t, signed, tampered)

	err = signer.VerifyEnvelope(tampered, nil)
	require.Error(t, err)
	var serr *SecurityError
	require.ErrorAs(t, err, &serr)
}

func TestSignAndVerifyWithAttachments(t *testing.T) {
	key, cert := testKeyPair(t)
	signer, err := NewSigner(key, cert)
	require.NoError(t, err)

	attachments := []message.Part{
		{ContentID: "payload-1@as4core", ContentType: "application/xml", Data: []byte("<Doc>one</Doc>")},
		{ContentID: "payload-2@as4core", ContentType: "application/pdf", Data: []byte("pdf bytes")},
	}

	signed, err := signer.SignEnvelope([]byte(testEnvelopeXML), attachments)
	require.NoError(t, err)
	assert.Contains(t, string(signed), "cid:payload-1@as4core")
	assert.Contains(t, string(signed), SwAContentSignatureTransform)

	require.NoError(t, signer.VerifyEnvelope(signed, attachments))

	// Altered attachment content must fail the digest check.
	tampered := []message.Part{attachments[0], {
		ContentID:   "payload-2@as4core",
		ContentType: "application/pdf",
		Data:        []byte("different bytes"),
	}}
	err = signer.VerifyEnvelope(signed, tampered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")

	// A signed attachment that never arrives must fail too.
	err = signer.VerifyEnvelope(signed, attachments[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not present")
}

func TestEncryptDecryptAttachments(t *testing.T) {
	key, cert := testKeyPair(t)

	encryptor, err := NewEncryptor(cert)
	require.NoError(t, err)
	decryptor, err := NewDecryptor(key)
	require.NoError(t, err)

	plaintext := []message.Part{
		{ContentID: "order@as4core", ContentType: "application/xml", Data: []byte("<Order/>")},
		{ContentID: "scan@as4core", ContentType: "image/png", Data: []byte{0x89, 0x50, 0x4E, 0x47}},
	}

	result, err := encryptor.EncryptAttachments([]byte(testEnvelopeXML), plaintext)
	require.NoError(t, err)
	require.Len(t, result.Attachments, 2)

	envStr := string(result.EnvelopeXML)
	assert.Contains(t, envStr, "EncryptedKey")
	assert.Contains(t, envStr, AlgorithmRSAOAEP)
	assert.Contains(t, envStr, "cid:order@as4core")
	assert.Contains(t, envStr, SwACiphertextTransform)
	assert.True(t, IsEncrypted(result.EnvelopeXML))

	// Ciphertext parts are normalized to octet-stream/binary.
	for i, part := range result.Attachments {
		assert.Equal(t, EncryptedMimeType, part.ContentType)
		assert.Equal(t, EncryptedTransferEncoding, part.TransferEncoding)
		assert.NotEqual(t, plaintext[i].Data, part.Data)
	}

	decrypted, err := decryptor.DecryptAttachments(result.EnvelopeXML, result.Attachments)
	require.NoError(t, err)
	require.Len(t, decrypted, 2)
	assert.Equal(t, "application/xml", decrypted[0].ContentType)
	assert.Equal(t, []byte("<Order/>"), decrypted[0].Data)
	assert.Equal(t, "image/png", decrypted[1].ContentType)
	assert.Equal(t, plaintext[1].Data, decrypted[1].Data)
}

func TestDecryptAttachmentsWrongKey(t *testing.T) {
	_, cert := testKeyPair(t)
	otherKey, _ := testKeyPair(t)

	encryptor, err := NewEncryptor(cert)
	require.NoError(t, err)
	decryptor, err := NewDecryptor(otherKey)
	require.NoError(t, err)

	result, err := encryptor.EncryptAttachments([]byte(testEnvelopeXML), []message.Part{
		{ContentID: "p@as4core", ContentType: "text/plain", Data: []byte("secret")},
	})
	require.NoError(t, err)

	_, err = decryptor.DecryptAttachments(result.EnvelopeXML, result.Attachments)
	require.Error(t, err)
	var serr *SecurityError
	require.ErrorAs(t, err, &serr)
}

func TestEncryptAttachmentsEmptySet(t *testing.T) {
	_, cert := testKeyPair(t)
	encryptor, err := NewEncryptor(cert)
	require.NoError(t, err)

	result, err := encryptor.EncryptAttachments([]byte(testEnvelopeXML), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte(testEnvelopeXML), result.EnvelopeXML)
	assert.Empty(t, result.Attachments)
}

func TestEncryptDecryptBody(t *testing.T) {
	key, cert := testKeyPair(t)

	encryptor, err := NewEncryptor(cert, WithAES256())
	require.NoError(t, err)
	decryptor, err := NewDecryptor(key)
	require.NoError(t, err)

	encrypted, err := encryptor.EncryptBody([]byte(testEnvelopeXML))
	require.NoError(t, err)

	encStr := string(encrypted)
	assert.Contains(t, encStr, "EncryptedData")
	assert.Contains(t, encStr, XencTypeContent)
	assert.Contains(t, encStr, AlgorithmAES256GCM)
	assert.NotContains(t, encStr, "<Id>42</Id>")

	restored, err := decryptor.DecryptBody(encrypted)
	require.NoError(t, err)
	restoredStr := string(restored)
	assert.Contains(t, restoredStr, "<Id>42</Id>")
	assert.NotContains(t, restoredStr, "EncryptedKey")
}

func TestDecryptBodyWithoutEncryption(t *testing.T) {
	key, _ := testKeyPair(t)
	decryptor, err := NewDecryptor(key)
	require.NoError(t, err)

	_, err = decryptor.DecryptBody([]byte(testEnvelopeXML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no EncryptedData")
}

func TestSignThenEncryptThenDecryptThenVerify(t *testing.T) {
	senderKey, senderCert := testKeyPair(t)
	receiverKey, receiverCert := testKeyPair(t)

	signer, err := NewSigner(senderKey, senderCert)
	require.NoError(t, err)
	encryptor, err := NewEncryptor(receiverCert)
	require.NoError(t, err)
	decryptor, err := NewDecryptor(receiverKey)
	require.NoError(t, err)
	verifier, err := NewVerifier(senderCert)
	require.NoError(t, err)

	attachments := []message.Part{
		{ContentID: "doc@as4core", ContentType: "application/xml", Data: []byte("<Invoice/>")},
	}

	signed, err := signer.SignEnvelope([]byte(testEnvelopeXML), attachments)
	require.NoError(t, err)
	result, err := encryptor.EncryptAttachments(signed, attachments)
	require.NoError(t, err)

	decrypted, err := decryptor.DecryptAttachments(result.EnvelopeXML, result.Attachments)
	require.NoError(t, err)
	require.NoError(t, verifier.VerifyEnvelope(result.EnvelopeXML, decrypted))
	assert.Equal(t, []byte("<Invoice/>"), decrypted[0].Data)
}

func TestResolveCertRefType(t *testing.T) {
	_, cert := testKeyPair(t)

	// Explicit choices pass through.
	assert.Equal(t, CertRefThumbprint, ResolveCertRefType(CertRefThumbprint, cert))
	assert.Equal(t, CertRefBSTDirectReference, ResolveCertRefType(CertRefBSTDirectReference, cert))

	// Auto resolves to SKI or IssuerSerial depending on the extension.
	resolved := ResolveCertRefType(CertRefAuto, cert)
	if len(SubjectKeyIdentifier(cert)) > 0 {
		assert.Equal(t, CertRefSKI, resolved)
	} else {
		assert.Equal(t, CertRefIssuerSerial, resolved)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateID()
		assert.Len(t, id, 32)
		assert.False(t, seen[id], "duplicate id generated")
		seen[id] = true
	}
}

func TestSecurityErrorUnwrap(t *testing.T) {
	inner := ErrCertificateRevoked
	err := secErr("check", inner)
	var serr *SecurityError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "check", serr.Op)
	assert.ErrorIs(t, err, ErrCertificateRevoked)
	assert.True(t, strings.HasPrefix(err.Error(), "security: check:"))
}
