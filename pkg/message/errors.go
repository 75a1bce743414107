package message

// ebMS3 error severities
const (
	SeverityWarning = "warning"
	SeverityFailure = "failure"
)

// ebMS3 error categories
const (
	CategoryContent       = "Content"
	CategoryCommunication = "Communication"
	CategoryUnpackaging   = "Unpackaging"
	CategoryProcessing    = "Processing"
)

// ErrorSpec describes one entry of the ebMS3 error code registry
type ErrorSpec struct {
	Code             string
	Severity         string
	Category         string
	ShortDescription string
}

// ebMS3 / AS4 error code registry. Codes come from the ebMS 3.0 Core
// specification section 6.7 and the AS4 profile additions.
var (
	ErrValueNotRecognized               = ErrorSpec{"EBMS:0001", SeverityFailure, CategoryContent, "ValueNotRecognized"}
	ErrFeatureNotSupported              = ErrorSpec{"EBMS:0002", SeverityWarning, CategoryContent, "FeatureNotSupported"}
	ErrValueInconsistent                = ErrorSpec{"EBMS:0003", SeverityFailure, CategoryContent, "ValueInconsistent"}
	ErrOther                            = ErrorSpec{"EBMS:0004", SeverityFailure, CategoryContent, "Other"}
	ErrConnectionFailure                = ErrorSpec{"EBMS:0005", SeverityWarning, CategoryCommunication, "ConnectionFailure"}
	ErrEmptyPartition                   = ErrorSpec{"EBMS:0006", SeverityWarning, CategoryCommunication, "EmptyMessagePartitionChannel"}
	ErrMimeInconsistency                = ErrorSpec{"EBMS:0007", SeverityFailure, CategoryUnpackaging, "MimeInconsistency"}
	ErrFeatureNotSupportedInconsistency = ErrorSpec{"EBMS:0008", SeverityFailure, CategoryUnpackaging, "FeatureNotSupportedInconsistency"}
	ErrInvalidHeader                    = ErrorSpec{"EBMS:0009", SeverityFailure, CategoryUnpackaging, "InvalidHeader"}
	ErrProcessingModeMismatch           = ErrorSpec{"EBMS:0010", SeverityFailure, CategoryProcessing, "ProcessingModeMismatch"}
	ErrExternalPayloadError             = ErrorSpec{"EBMS:0011", SeverityFailure, CategoryContent, "ExternalPayloadError"}
	ErrFailedAuthentication             = ErrorSpec{"EBMS:0101", SeverityFailure, CategoryProcessing, "FailedAuthentication"}
	ErrFailedDecryption                 = ErrorSpec{"EBMS:0102", SeverityFailure, CategoryProcessing, "FailedDecryption"}
	ErrPolicyNoncompliance              = ErrorSpec{"EBMS:0103", SeverityFailure, CategoryProcessing, "PolicyNoncompliance"}
	ErrDysfunctionalReliability         = ErrorSpec{"EBMS:0201", SeverityFailure, CategoryProcessing, "DysfunctionalReliability"}
	ErrDeliveryFailure                  = ErrorSpec{"EBMS:0202", SeverityFailure, CategoryCommunication, "DeliveryFailure"}
	ErrMissingReceipt                   = ErrorSpec{"EBMS:0301", SeverityFailure, CategoryCommunication, "MissingReceipt"}
	ErrInvalidReceipt                   = ErrorSpec{"EBMS:0302", SeverityFailure, CategoryCommunication, "InvalidReceipt"}
	ErrDecompressionFailure             = ErrorSpec{"EBMS:0303", SeverityFailure, CategoryCommunication, "DecompressionFailure"}
)

// NewErrorSignal builds an error signal message from a registry entry.
// Duplicate rejections are reported as EBMS:0004 with an explanatory
// detail, matching common AS4 server behavior.
func NewErrorSignal(spec ErrorSpec, refMessageId, detail string) *SignalMessage {
	sig := newSignal(refMessageId)
	sig.Error = &Error{
		ErrorCode:           spec.Code,
		Severity:            spec.Severity,
		Category:            spec.Category,
		ShortDescription:    spec.ShortDescription,
		RefToMessageInError: refMessageId,
		ErrorDetail:         detail,
	}
	return sig
}
