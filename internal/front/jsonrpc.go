package front

import (
	"encoding/json"
	"errors"

	apperrors "github.com/codivex/codivex/internal/errors"
)

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToRPCError maps any error RequestFront returns to a JSON-RPC error
// object: a *errors.KindError maps via its Kind; anything else is Internal.
func ToRPCError(err error) RPCError {
	var kindErr *apperrors.KindError
	if errors.As(err, &kindErr) {
		return RPCError{Code: kindErr.Kind.JSONRPCCode(), Message: kindErr.Message}
	}
	return RPCError{Code: apperrors.KindInternal.JSONRPCCode(), Message: err.Error()}
}

// RPCResponse is a minimal JSON-RPC 2.0 envelope for transports that want
// to marshal a RequestFront result directly.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      any         `json:"id"`
	Result  any         `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// NewResultResponse builds a success envelope.
func NewResultResponse(id, result any) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse builds a failure envelope from any error.
func NewErrorResponse(id any, err error) RPCResponse {
	rpcErr := ToRPCError(err)
	return RPCResponse{JSONRPC: "2.0", ID: id, Error: &rpcErr}
}

// Marshal is a small convenience wrapper so callers don't need to import
// encoding/json just to serialize a RequestFront response.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
