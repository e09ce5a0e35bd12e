package protocol

import (
	"fmt"
	"net/http"
)

// Error codes used by the connection lifecycle.
const (
	CodeBadRequest          = 40000
	CodeInvalidCredentials  = 40101
	CodeTokenErrorMin       = 40140
	CodeTokenErrorMax       = 40149
	CodeTokenRenewalFailed  = 40170
	CodeInternal            = 50000
	CodeTimeout             = 50003
	CodeConnectionFailed    = 80000
	CodeConnectionSuspended = 80002
	CodeDisconnected        = 80003
	CodeConnectionClosed    = 80017
)

// ErrorInfo is the error payload carried by protocol messages and by
// connection state changes.
type ErrorInfo struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message,omitempty"`
	Href       string `json:"href,omitempty"`
}

// NewErrorInfo returns an ErrorInfo with the given fields.
func NewErrorInfo(code, status int, message string) *ErrorInfo {
	return &ErrorInfo{Code: code, StatusCode: status, Message: message}
}

func (e *ErrorInfo) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (code=%d status=%d)", e.Message, e.Code, e.StatusCode)
}

// IsTokenError reports whether the code is in the token error range.
func (e *ErrorInfo) IsTokenError() bool {
	return e != nil && e.Code >= CodeTokenErrorMin && e.Code <= CodeTokenErrorMax
}

// Clone returns a copy, or nil.
func (e *ErrorInfo) Clone() *ErrorInfo {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// Canonical reasons attached to state changes.
func ReasonDisconnected() *ErrorInfo {
	return NewErrorInfo(CodeDisconnected, http.StatusServiceUnavailable, "connection to server temporarily unavailable")
}

func ReasonSuspended() *ErrorInfo {
	return NewErrorInfo(CodeConnectionSuspended, http.StatusServiceUnavailable, "connection to server unavailable")
}

func ReasonFailed() *ErrorInfo {
	return NewErrorInfo(CodeConnectionFailed, http.StatusBadRequest, "connection failed")
}

func ReasonClosed() *ErrorInfo {
	return NewErrorInfo(CodeConnectionClosed, http.StatusBadRequest, "connection closed")
}

func ReasonTimeout() *ErrorInfo {
	return NewErrorInfo(CodeTimeout, http.StatusGatewayTimeout, "connection to server timed out")
}
