package gateway

// ResearchRequest is the wire shape accepted by both stream endpoints.
// dataset_name selects the workflow document; overrides are restricted to the
// enumerated override keys.
type ResearchRequest struct {
	Content     string            `json:"content"`
	DatasetName string            `json:"dataset_name"`
	Overrides   map[string]string `json:"overrides,omitempty"`
}

// ErrorResponse is the body of a synchronous (pre-session) rejection
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Synchronous rejection codes
const (
	CodeBadRequest   = "bad_request"
	CodeConfigError  = "config_error"
	CodeUnauthorized = "unauthorized"
	CodeCapacity     = "capacity"
	CodeInternal     = "internal_error"
)
