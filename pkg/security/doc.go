// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package security implements the WS-Security 1.1.1 processing applied to
outbound and inbound envelopes: XML digital signatures and XML
encryption, including the SOAP with Attachments (SwA) profile for
encrypted MIME payloads.

# Signing

The Signer produces an enveloped signature over the wsu:Timestamp, the
SOAP Body and the ebMS Messaging header, plus one cid: reference per
attachment using the SwA Attachment-Content-Signature-Transform:

	signer, _ := security.NewSigner(privateKey, cert)
	signed, err := signer.SignEnvelope(envelopeXML, attachments)
	err = signer.VerifyEnvelope(signed, attachments)

# Encryption

The Encryptor supports two modes. Body mode encrypts the SOAP Body
content in place as an xenc:EncryptedData element. Attachment mode
encrypts every MIME part with a fresh AES-GCM content key, wraps the
key with RSA-OAEP-SHA256 for the recipient certificate, and returns the
ciphertext parts explicitly; encrypted parts are always rewritten to
application/octet-stream with binary transfer encoding.

Processing order is fixed: sign then encrypt on the way out, decrypt
then verify on the way in. Every failure is reported as a
*SecurityError and aborts the exchange.
*/
package security
