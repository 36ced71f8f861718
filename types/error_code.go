package types

import "fmt"

// ErrorCodeKind enumerates the cases of the WIT error-code variant.
type ErrorCodeKind uint8

const (
	ErrorDNSTimeout ErrorCodeKind = iota
	ErrorDNSError
	ErrorDestinationNotFound
	ErrorDestinationUnavailable
	ErrorDestinationIPProhibited
	ErrorDestinationIPUnroutable
	ErrorConnectionRefused
	ErrorConnectionTerminated
	ErrorConnectionTimeout
	ErrorConnectionReadTimeout
	ErrorConnectionWriteTimeout
	ErrorConnectionLimitReached
	ErrorTLSProtocolError
	ErrorTLSCertificateError
	ErrorTLSAlertReceived
	ErrorHTTPRequestDenied
	ErrorHTTPRequestLengthRequired
	ErrorHTTPRequestBodySize
	ErrorHTTPRequestMethodInvalid
	ErrorHTTPRequestURIInvalid
	ErrorHTTPRequestURITooLong
	ErrorHTTPRequestHeaderSectionSize
	ErrorHTTPRequestHeaderSize
	ErrorHTTPRequestTrailerSectionSize
	ErrorHTTPRequestTrailerSize
	ErrorHTTPResponseIncomplete
	ErrorHTTPResponseHeaderSectionSize
	ErrorHTTPResponseHeaderSize
	ErrorHTTPResponseBodySize
	ErrorHTTPResponseTrailerSectionSize
	ErrorHTTPResponseTrailerSize
	ErrorHTTPResponseTransferCoding
	ErrorHTTPResponseContentCoding
	ErrorHTTPResponseTimeout
	ErrorHTTPUpgradeFailed
	ErrorHTTPProtocolError
	ErrorLoopDetected
	ErrorConfigurationError
	ErrorInternalError
)

var errorCodeNames = [...]string{
	ErrorDNSTimeout:                     "DNS-timeout",
	ErrorDNSError:                       "DNS-error",
	ErrorDestinationNotFound:            "destination-not-found",
	ErrorDestinationUnavailable:         "destination-unavailable",
	ErrorDestinationIPProhibited:        "destination-IP-prohibited",
	ErrorDestinationIPUnroutable:        "destination-IP-unroutable",
	ErrorConnectionRefused:              "connection-refused",
	ErrorConnectionTerminated:           "connection-terminated",
	ErrorConnectionTimeout:              "connection-timeout",
	ErrorConnectionReadTimeout:          "connection-read-timeout",
	ErrorConnectionWriteTimeout:         "connection-write-timeout",
	ErrorConnectionLimitReached:         "connection-limit-reached",
	ErrorTLSProtocolError:               "TLS-protocol-error",
	ErrorTLSCertificateError:            "TLS-certificate-error",
	ErrorTLSAlertReceived:               "TLS-alert-received",
	ErrorHTTPRequestDenied:              "HTTP-request-denied",
	ErrorHTTPRequestLengthRequired:      "HTTP-request-length-required",
	ErrorHTTPRequestBodySize:            "HTTP-request-body-size",
	ErrorHTTPRequestMethodInvalid:       "HTTP-request-method-invalid",
	ErrorHTTPRequestURIInvalid:          "HTTP-request-URI-invalid",
	ErrorHTTPRequestURITooLong:          "HTTP-request-URI-too-long",
	ErrorHTTPRequestHeaderSectionSize:   "HTTP-request-header-section-size",
	ErrorHTTPRequestHeaderSize:          "HTTP-request-header-size",
	ErrorHTTPRequestTrailerSectionSize:  "HTTP-request-trailer-section-size",
	ErrorHTTPRequestTrailerSize:         "HTTP-request-trailer-size",
	ErrorHTTPResponseIncomplete:         "HTTP-response-incomplete",
	ErrorHTTPResponseHeaderSectionSize:  "HTTP-response-header-section-size",
	ErrorHTTPResponseHeaderSize:         "HTTP-response-header-size",
	ErrorHTTPResponseBodySize:           "HTTP-response-body-size",
	ErrorHTTPResponseTrailerSectionSize: "HTTP-response-trailer-section-size",
	ErrorHTTPResponseTrailerSize:        "HTTP-response-trailer-size",
	ErrorHTTPResponseTransferCoding:     "HTTP-response-transfer-coding",
	ErrorHTTPResponseContentCoding:      "HTTP-response-content-coding",
	ErrorHTTPResponseTimeout:            "HTTP-response-timeout",
	ErrorHTTPUpgradeFailed:              "HTTP-upgrade-failed",
	ErrorHTTPProtocolError:              "HTTP-protocol-error",
	ErrorLoopDetected:                   "loop-detected",
	ErrorConfigurationError:             "configuration-error",
	ErrorInternalError:                  "internal-error",
}

func (k ErrorCodeKind) String() string {
	if int(k) < len(errorCodeNames) {
		return errorCodeNames[k]
	}
	return fmt.Sprintf("error-code(%d)", uint8(k))
}

// ErrorCode is the domain error of wasi:http. Message carries the optional
// payload some cases have, most notably internal-error.
type ErrorCode struct {
	Kind    ErrorCodeKind
	Message *string
}

// InternalError returns an internal-error ErrorCode carrying msg.
func InternalError(msg string) ErrorCode {
	return ErrorCode{Kind: ErrorInternalError, Message: &msg}
}

// NewErrorCode returns an ErrorCode of the given kind without a payload.
func NewErrorCode(kind ErrorCodeKind) ErrorCode {
	return ErrorCode{Kind: kind}
}

func (e ErrorCode) Error() string {
	if e.Message != nil {
		return fmt.Sprintf("%s: %s", e.Kind, *e.Message)
	}
	return e.Kind.String()
}
