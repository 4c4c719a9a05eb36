package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/ketchup-chat/internal/catalog"
	"github.com/npezzotti/ketchup-chat/internal/types"
)

// ApiError is a failed request. Errors on the persistence proxy routes
// keep the persistence service's {"error": ...} body so clients see the
// same shape whichever service they talk to.
type ApiError struct {
	StatusCode int
	Message    string
	Err        error
	proxied    bool
}

func (e *ApiError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func (e *ApiError) MarshalJSON() ([]byte, error) {
	if e.proxied {
		return json.Marshal(types.ErrorResponse{Error: e.Message})
	}

	return json.Marshal(struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
	}{e.StatusCode, e.Message})
}

func newApiError(code int, err error) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    strings.ToLower(http.StatusText(code)),
		Err:        err,
	}
}

// proxyError reports err verbatim in the persistence service's body.
func proxyError(code int, err error) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    err.Error(),
		Err:        err,
		proxied:    true,
	}
}

func catalogError(err error) *ApiError {
	var statusErr *catalog.StatusError
	switch {
	case errors.Is(err, catalog.ErrInvalidPage):
		return newApiError(http.StatusBadRequest, err)
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return newApiError(http.StatusNotFound, err)
	default:
		return newApiError(http.StatusBadGateway, err)
	}
}

func (s *KetchupApp) writeError(w http.ResponseWriter, e *ApiError) {
	if e.StatusCode >= http.StatusInternalServerError {
		s.log.Printf("responding %d: %v", e.StatusCode, e)
	}
	s.writeJson(w, e.StatusCode, e)
}
