package types

// SuccessEnvelope wraps every 2xx body of the ops surface.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public view of a pkg/errors failure. Details are only set
// when the error code allows them.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx body, e.g. a failed readiness probe.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
