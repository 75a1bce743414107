package security

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
)

// CertReferenceType selects how a certificate is referenced inside a
// SecurityTokenReference. Receivers differ in what they accept, and not
// every certificate supports every method.
type CertReferenceType int

const (
	// CertRefAuto picks SKI when the certificate carries the extension,
	// IssuerSerial otherwise
	CertRefAuto CertReferenceType = iota
	// CertRefIssuerSerial references by issuer DN plus serial number
	CertRefIssuerSerial
	// CertRefSKI references by the SubjectKeyIdentifier extension
	CertRefSKI
	// CertRefBSTDirectReference embeds the certificate as a
	// BinarySecurityToken and points at it
	CertRefBSTDirectReference
	// CertRefThumbprint references by the SHA-1 certificate hash
	CertRefThumbprint
)

func (t CertReferenceType) String() string {
	switch t {
	case CertRefAuto:
		return "Auto"
	case CertRefIssuerSerial:
		return "IssuerSerial"
	case CertRefSKI:
		return "SKI"
	case CertRefBSTDirectReference:
		return "BSTDirectReference"
	case CertRefThumbprint:
		return "Thumbprint"
	default:
		return "Unknown"
	}
}

// SubjectKeyIdentifier extracts the SKI extension value, or nil
func SubjectKeyIdentifier(cert *x509.Certificate) []byte {
	skiOID := asn1.ObjectIdentifier{2, 5, 29, 14}
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(skiOID) {
			continue
		}
		var ski []byte
		if _, err := asn1.Unmarshal(ext.Value, &ski); err == nil {
			return ski
		}
		if len(ext.Value) > 2 {
			return ext.Value[2:]
		}
	}
	return nil
}

// Thumbprint returns the SHA-1 hash of the DER-encoded certificate
func Thumbprint(cert *x509.Certificate) []byte {
	h := sha1.Sum(cert.Raw)
	return h[:]
}

// ResolveCertRefType resolves CertRefAuto against a concrete certificate
func ResolveCertRefType(refType CertReferenceType, cert *x509.Certificate) CertReferenceType {
	if refType != CertRefAuto {
		return refType
	}
	if len(SubjectKeyIdentifier(cert)) > 0 {
		return CertRefSKI
	}
	return CertRefIssuerSerial
}

// addCertificateReference builds the SecurityTokenReference for the
// given method under keyInfo. bstID names the BinarySecurityToken when
// the direct reference method is used.
func addCertificateReference(keyInfo *etree.Element, cert *x509.Certificate, refType CertReferenceType, bstID string) error {
	str := keyInfo.CreateElement("wsse:SecurityTokenReference")
	str.CreateAttr("xmlns:wsse", NsWSSE)

	switch refType {
	case CertRefIssuerSerial:
		x509Data := str.CreateElement("ds:X509Data")
		issuerSerial := x509Data.CreateElement("ds:X509IssuerSerial")
		issuerSerial.CreateElement("ds:X509IssuerName").SetText(cert.Issuer.String())
		issuerSerial.CreateElement("ds:X509SerialNumber").SetText(cert.SerialNumber.String())

	case CertRefSKI:
		ski := SubjectKeyIdentifier(cert)
		if len(ski) == 0 {
			return fmt.Errorf("certificate has no SubjectKeyIdentifier extension")
		}
		keyID := str.CreateElement("wsse:KeyIdentifier")
		keyID.CreateAttr("EncodingType", EncodingBase64)
		keyID.CreateAttr("ValueType", ValueTypeSKI)
		keyID.SetText(base64.StdEncoding.EncodeToString(ski))

	case CertRefBSTDirectReference:
		ref := str.CreateElement("wsse:Reference")
		ref.CreateAttr("URI", "#"+bstID)
		ref.CreateAttr("ValueType", ValueTypeX509v3)

	case CertRefThumbprint:
		keyID := str.CreateElement("wsse:KeyIdentifier")
		keyID.CreateAttr("EncodingType", EncodingBase64)
		keyID.CreateAttr("ValueType", ValueTypeThumbprint)
		keyID.SetText(base64.StdEncoding.EncodeToString(Thumbprint(cert)))

	default:
		return fmt.Errorf("unsupported certificate reference type: %v", refType)
	}
	return nil
}
