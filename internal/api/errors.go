package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/actquant/internal/graphio"
	"github.com/samcharles93/actquant/internal/optimizer"
	"github.com/samcharles93/actquant/internal/pass"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// classify maps an error from decoding or quantizing to a status and an
// error type for the response body. param names the failing node, if any.
func classify(err error) (status int, errType, param string) {
	var ne *pass.NodeError
	if errors.As(err, &ne) {
		param = ne.Node
	}
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, graphio.ErrInvalidDocument),
		errors.Is(err, optimizer.ErrInvalidParameter):
		return http.StatusBadRequest, "invalid_request_error", param
	case errors.Is(err, pass.ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity, "unsupported_operation_error", param
	case errors.Is(err, pass.ErrUnsupportedDataType):
		return http.StatusUnprocessableEntity, "unsupported_data_type_error", param
	case errors.Is(err, pass.ErrInvariantViolation):
		return http.StatusUnprocessableEntity, "invariant_violation_error", param
	default:
		return http.StatusInternalServerError, "server_error", param
	}
}
