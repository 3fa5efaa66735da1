package apilog

import (
	"fmt"
	"time"
)

// ModuleName identifies which external ODeX operation a log record belongs to.
// The set is closed: unrecognized values are rejected at creation time.
type ModuleName string

const (
	ModuleVGMSubmission    ModuleName = "VGM_SUBMISSION"
	ModuleVGMStatus        ModuleName = "VGM_STATUS"
	ModuleForm13Submission ModuleName = "FORM13_SUBMISSION"
	ModuleAuthorization    ModuleName = "AUTHORIZATION"
)

// ParseModuleName validates a raw module name against the recognized set.
func ParseModuleName(raw string) (ModuleName, error) {
	switch ModuleName(raw) {
	case ModuleVGMSubmission, ModuleVGMStatus, ModuleForm13Submission, ModuleAuthorization:
		return ModuleName(raw), nil
	default:
		return "", &ValidationError{Field: "moduleName", Message: fmt.Sprintf("unrecognized module name %q", raw)}
	}
}

// Status represents the lifecycle state of an API log record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// RequestInfo captures the outbound request as it was sent to the carrier.
type RequestInfo struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Body      map[string]any    `json:"body"`
	Timestamp time.Time         `json:"timestamp"`
}

// ResponseInfo captures the carrier's response, or the transport failure
// that stood in for one. It is absent until the call resolves.
type ResponseInfo struct {
	StatusCode  int               `json:"statusCode"`
	Data        map[string]any    `json:"data"`
	Headers     map[string]string `json:"headers"`
	TimeTakenMs int64             `json:"timeTaken"`
	Timestamp   time.Time         `json:"timestamp"`
}

// ApiLog is the durable record of one attempted external API call.
type ApiLog struct {
	ID            string        `json:"id"`
	ModuleName    ModuleName    `json:"moduleName"`
	Request       RequestInfo   `json:"request"`
	Response      *ResponseInfo `json:"response,omitempty"`
	Status        Status        `json:"status"`
	Remarks       string        `json:"remarks,omitempty"`
	RetryCount    int           `json:"retryCount"`
	OriginalLogID string        `json:"originalLogId,omitempty"`
	Version       int64         `json:"version"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy of the request. Mutation flows merge patches
// into copies so that the stored original is never aliased.
func (r RequestInfo) Clone() RequestInfo {
	out := r
	out.Headers = cloneStringMap(r.Headers)
	out.Body = cloneAnyMap(r.Body)
	return out
}

// Clone returns a deep copy of the response at the top level. Nested
// response data is treated as opaque and is not copied recursively.
func (r *ResponseInfo) Clone() *ResponseInfo {
	if r == nil {
		return nil
	}
	out := *r
	out.Headers = cloneStringMap(r.Headers)
	out.Data = cloneAnyMap(r.Data)
	return &out
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
