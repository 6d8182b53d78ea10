package daemon

import (
	"encoding/json"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/userconfig"
)

// JSON-RPC 2.0 method names. Each maps to one bridge command.
const (
	MethodInitialSearch               = "initialSearch"
	MethodIndexBatch                  = "indexBatch"
	MethodRealTimeIndex               = "realTimeIndex"
	MethodSearch                      = "search"
	MethodGetLatestTimestamp          = "getLatestTimestamp"
	MethodEncryptIndex                = "encryptIndex"
	MethodDeleteRealTimeIndex         = "deleteRealTimeIndex"
	MethodCheckDiskSpace              = "checkDiskSpace"
	MethodGetSearchUserConfig         = "getSearchUserConfig"
	MethodUpdateUserConfig            = "updateUserConfig"
	MethodGetValidatorResponse        = "getValidatorResponse"
	MethodSetIsSwiftSearchInitialized = "setIsSwiftSearchInitialized"
	MethodSubscribe                   = "subscribe"
	MethodStatus                      = "status"
	MethodPing                        = "ping"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for bridge errors.
const (
	ErrCodeNotInitialized  = -32001
	ErrCodeOperationFailed = -32002
)

// Request represents a JSON-RPC 2.0 request. ID is echoed verbatim, so
// numbers and strings both work.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response. RequestID repeats ID for
// front-ends that correlate on requestId.
type Response struct {
	JSONRPC   string          `json:"jsonrpc"`
	Result    any             `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	ID        json.RawMessage `json:"id,omitempty"`
	RequestID json.RawMessage `json:"requestId,omitempty"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Notification is pushed to subscribed connections.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Data    any    `json:"data"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id json.RawMessage, result any) Response {
	return Response{
		JSONRPC:   "2.0",
		Result:    result,
		ID:        id,
		RequestID: id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id json.RawMessage, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID:        id,
		RequestID: id,
	}
}

// newFailureResponse reports a failed operation, carrying the structured
// error as data.
func newFailureResponse(id json.RawMessage, err error) Response {
	resp := NewErrorResponse(id, ErrCodeOperationFailed, amerrors.MessageOf(err))
	if data, jerr := amerrors.FormatJSON(err); jerr == nil {
		resp.Error.Data = data
	}
	return resp
}

// InitialPayload tunes a new index manager.
type InitialPayload struct {
	// ReIndex skips the archive and starts a fresh index.
	ReIndex bool `json:"reIndex,omitempty"`
	// SearchPeriod overrides the search window, in milliseconds.
	SearchPeriod int64 `json:"searchPeriod,omitempty"`
	// MinimumDiskSpace overrides the archive ceiling, in bytes.
	MinimumDiskSpace int64 `json:"minimumDiskSpace,omitempty"`
}

// InitialSearchParams are the parameters for initialSearch.
type InitialSearchParams struct {
	UserID  string         `json:"userId"`
	Key     string         `json:"key"`
	Payload InitialPayload `json:"payload"`
}

// IndexBatchParams are the parameters for indexBatch. Message is a JSON
// array encoded as a string.
type IndexBatchParams struct {
	Message *string `json:"message"`
}

// IndexBatchResult mirrors the callback contract: Data is the indexed count
// on success and the failure text otherwise.
type IndexBatchResult struct {
	Status bool `json:"status"`
	Data   any  `json:"data"`
}

// RealTimeIndexParams carries one message for the collector.
type RealTimeIndexParams struct {
	Message json.RawMessage `json:"message"`
}

// TimestampResult is the reply to getLatestTimestamp. Timestamp holds the
// failure text when Status is false.
type TimestampResult struct {
	Status    bool   `json:"status"`
	Timestamp string `json:"timestamp"`
}

// EncryptIndexParams are the parameters for encryptIndex.
type EncryptIndexParams struct {
	Key string `json:"key"`
}

// CheckDiskSpaceParams are the parameters for checkDiskSpace.
type CheckDiskSpaceParams struct {
	MinimumDiskSpace int64 `json:"minimumDiskSpace"`
}

// UserConfigParams are the parameters for getSearchUserConfig.
type UserConfigParams struct {
	UserID string `json:"userId"`
}

// UpdateUserConfigParams are the parameters for updateUserConfig.
type UpdateUserConfigParams struct {
	UserID   string                 `json:"userId"`
	UserData *userconfig.UserConfig `json:"userData"`
}

// StatusResult contains daemon and index status.
type StatusResult struct {
	Running          bool   `json:"running"`
	PID              int    `json:"pid"`
	Uptime           string `json:"uptime"`
	Version          string `json:"version"`
	Initialized      bool   `json:"initialized"`
	State            string `json:"state"`
	UserID           string `json:"userId,omitempty"`
	RealTimeIndexing bool   `json:"realTimeIndexing"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong    bool   `json:"pong"`
	Version string `json:"version"`
}
