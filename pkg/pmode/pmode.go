package pmode

import (
	"time"
)

// Signature algorithm URIs
const (
	SignatureRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	SignatureRSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	SignatureRSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
)

// Digest algorithm URIs
const (
	DigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestSHA384 = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	DigestSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"
)

// Key transport algorithm URIs
const (
	KeyTransportRSAOAEP = "http://www.w3.org/2009/xmlenc11#rsa-oaep"
)

// Data encryption algorithm URIs
const (
	EncryptionAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	EncryptionAES256GCM = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
)

// MEP URIs
const (
	MEPOneWay = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/oneWay"
	MEPTwoWay = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/twoWay"
)

// MEP binding URIs
const (
	MEPBindingPush        = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/push"
	MEPBindingPull        = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pull"
	MEPBindingPushAndPull = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pushAndPull"
	MEPBindingSync        = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/sync"
)

// EncryptionMode selects what the security layer encrypts
type EncryptionMode string

const (
	// EncryptBodyOnly encrypts the SOAP Body content in place
	EncryptBodyOnly EncryptionMode = "body"
	// EncryptAttachments encrypts every MIME attachment, referenced
	// from the envelope through a single cid:Attachments reference list
	EncryptAttachments EncryptionMode = "attachments"
)

// ProcessingMode is one P-Mode record
type ProcessingMode struct {
	ID           string       `xml:"id,attr" yaml:"id"`
	Agreement    string       `xml:"Agreement,omitempty" yaml:"agreement"`
	MEP          string       `xml:"MEP" yaml:"mep"`
	MEPBinding   string       `xml:"MEPBinding" yaml:"mepBinding"`
	Initiator    Participant  `xml:"Initiator" yaml:"initiator"`
	Responder    Participant  `xml:"Responder" yaml:"responder"`
	BusinessInfo BusinessInfo `xml:"BusinessInfo" yaml:"businessInfo"`
	Payload      Payload      `xml:"Payload" yaml:"payload"`
	Reliability  Reliability  `xml:"Reliability" yaml:"reliability"`
	Security     Security     `xml:"Security" yaml:"security"`
}

// Participant identifies one party of the exchange
type Participant struct {
	PartyID string `xml:"PartyID,omitempty" yaml:"partyId"`
	Role    string `xml:"Role,omitempty" yaml:"role"`
}

// BusinessInfo binds the P-Mode to a service and action
type BusinessInfo struct {
	Service string `xml:"Service,omitempty" yaml:"service"`
	Action  string `xml:"Action,omitempty" yaml:"action"`
}

// Payload holds payload handling settings
type Payload struct {
	CompressPayloads bool `xml:"CompressPayloads,omitempty" yaml:"compressPayloads"`
}

// Reliability holds reception awareness settings
type Reliability struct {
	DuplicateDetection bool          `xml:"DuplicateDetection,omitempty" yaml:"duplicateDetection"`
	DuplicateWindow    time.Duration `xml:"DuplicateWindow,omitempty" yaml:"duplicateWindow"`
}

// Security holds the signing and encryption settings of the leg
type Security struct {
	Sign               bool           `xml:"Sign,omitempty" yaml:"sign"`
	SignatureAlgorithm string         `xml:"SignatureAlgorithm,omitempty" yaml:"signatureAlgorithm"`
	DigestAlgorithm    string         `xml:"DigestAlgorithm,omitempty" yaml:"digestAlgorithm"`
	Encrypt            bool           `xml:"Encrypt,omitempty" yaml:"encrypt"`
	EncryptionMode     EncryptionMode `xml:"EncryptionMode,omitempty" yaml:"encryptionMode"`
	KeyTransport       string         `xml:"KeyTransport,omitempty" yaml:"keyTransport"`
	DataEncryption     string         `xml:"DataEncryption,omitempty" yaml:"dataEncryption"`
}

// Default returns a One-Way/Push P-Mode with signing and attachment
// encryption enabled using the interoperable algorithm suite
func Default(id string) *ProcessingMode {
	return &ProcessingMode{
		ID:         id,
		MEP:        MEPOneWay,
		MEPBinding: MEPBindingPush,
		Payload: Payload{
			CompressPayloads: true,
		},
		Reliability: Reliability{
			DuplicateDetection: true,
			DuplicateWindow:    10 * time.Minute,
		},
		Security: Security{
			Sign:               true,
			SignatureAlgorithm: SignatureRSASHA256,
			DigestAlgorithm:    DigestSHA256,
			Encrypt:            true,
			EncryptionMode:     EncryptAttachments,
			KeyTransport:       KeyTransportRSAOAEP,
			DataEncryption:     EncryptionAES128GCM,
		},
	}
}

var validMEPs = map[string]bool{
	MEPOneWay: true,
	MEPTwoWay: true,
}

var validBindings = map[string]bool{
	MEPBindingPush:        true,
	MEPBindingPull:        true,
	MEPBindingPushAndPull: true,
	MEPBindingSync:        true,
}

// Validate checks the record for structural errors. All registry
// operations validate before touching the store.
func (pm *ProcessingMode) Validate() error {
	if pm == nil {
		return &ValidationError{Field: "pmode", Reason: "nil processing mode"}
	}
	if pm.ID == "" {
		return &ValidationError{PModeID: pm.ID, Field: "ID", Reason: "must not be empty"}
	}
	if pm.MEP == "" {
		return &ValidationError{PModeID: pm.ID, Field: "MEP", Reason: "must not be empty"}
	}
	if !validMEPs[pm.MEP] {
		return &ValidationError{PModeID: pm.ID, Field: "MEP", Reason: "unknown MEP " + pm.MEP}
	}
	if pm.MEPBinding == "" {
		return &ValidationError{PModeID: pm.ID, Field: "MEPBinding", Reason: "must not be empty"}
	}
	if !validBindings[pm.MEPBinding] {
		return &ValidationError{PModeID: pm.ID, Field: "MEPBinding", Reason: "unknown binding " + pm.MEPBinding}
	}
	if pm.Security.Encrypt {
		switch pm.Security.EncryptionMode {
		case EncryptBodyOnly, EncryptAttachments:
		case "":
			return &ValidationError{PModeID: pm.ID, Field: "Security.EncryptionMode", Reason: "must be set when encryption is enabled"}
		default:
			return &ValidationError{PModeID: pm.ID, Field: "Security.EncryptionMode", Reason: "unknown mode " + string(pm.Security.EncryptionMode)}
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored records
func (pm *ProcessingMode) Clone() *ProcessingMode {
	if pm == nil {
		return nil
	}
	cp := *pm
	return &cp
}
