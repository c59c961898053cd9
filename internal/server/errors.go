package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/found/internal/types"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch types.KindOf(err) {
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindInvalidInput:
		return http.StatusBadRequest
	case types.KindPolicyBlocked:
		return http.StatusTooManyRequests
	case types.KindApprovalRequired, types.KindCheckpointChallenge:
		return http.StatusConflict
	case types.KindLoginFailed:
		return http.StatusUnauthorized
	case types.KindExternalFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text sent to the client. Internal failures are not
// described beyond a generic message.
func errorMessage(err error) string {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed.Error()
	}
	return "Internal server error"
}
