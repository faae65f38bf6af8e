package types

// SuccessEnvelope is the body of every 2xx response.
type SuccessEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Meta    any  `json:"meta,omitempty"`
}

// ErrorEnvelope is the body of every error response. Error carries the
// internal error chain and is only populated in development mode.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// BulkMeta summarizes a best-effort batch insert.
type BulkMeta struct {
	Requested int `json:"requested"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
}
