package api

import (
	"errors"
	"net/http"

	"github.com/radio-control/rhal/internal/adapter"
	"github.com/radio-control/rhal/internal/radio"
)

// WriteRadioError maps a radio or adapter error onto the envelope.
//
// Argument errors are the client's fault (400), illegal transitions are
// a conflict with the current state (409), and hardware faults surface
// as a bad gateway because the daemon itself is healthy.
func WriteRadioError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, adapter.ErrInvalidArgs):
		WriteError(w, http.StatusBadRequest, "INVALID_ARGS", err.Error())
	case errors.Is(err, radio.ErrInvalidState):
		WriteError(w, http.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, adapter.ErrFailed):
		WriteError(w, http.StatusBadGateway, "FAIL", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
