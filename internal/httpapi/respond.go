package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/p-n-ai/pai-scorm/internal/coursedata"
	"github.com/p-n-ai/pai-scorm/internal/scorm"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Key   string `json:"key,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// errBadRequest marks malformed request input.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

// writeError maps err onto a status code and JSON body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *coursedata.ValidationError
		limitErr      *scorm.LimitExceededError
		decodeErr     *scorm.DecodeError
	)

	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		resp.Kind = "validation"
		resp.Key = validationErr.Key
	case errors.As(err, &limitErr):
		status = http.StatusRequestEntityTooLarge
		resp.Kind = "suspend_data_limit"
		resp.Limit = limitErr.Limit
	case errors.As(err, &decodeErr):
		status = http.StatusUnprocessableEntity
		resp.Kind = "decode"
	case errors.Is(err, errUnknownSession), errors.Is(err, errUnknownCourse), errors.Is(err, errUnknownInteraction):
		status = http.StatusNotFound
		resp.Kind = "not_found"
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
		resp.Kind = "bad_request"
	}

	if status == http.StatusInternalServerError {
		s.deps.Logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, resp)
}

// readJSON decodes a JSON request body into dst.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest("reading body: %v", err)
	}
	return body, nil
}
