package common

// RequestIDHeaderName is the HTTP header carrying the per-request correlation
// id assigned by the server gateway.
const RequestIDHeaderName = "X-Request-ID"

// Character sets accepted in memo identifiers and passcodes.
const (
	CharsetDigits = "0123456789"
	CharsetLower  = "abcdefghijklmnopqrstuvwxyz"
	CharsetUpper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)
