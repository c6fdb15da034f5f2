package modules

// ModuleError carries the transport-facing description of a failed module
// call.
type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

const (
	codeInvalidParams = -32602
	codeServerError   = -32000
	codeNotFound      = -32004
)
