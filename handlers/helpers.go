package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/volleyball-tournament/brackets"
	"github.com/Dosada05/volleyball-tournament/lifecycle"
	"github.com/Dosada05/volleyball-tournament/models"
	"github.com/Dosada05/volleyball-tournament/services"
	"github.com/Dosada05/volleyball-tournament/store"
)

type jsonResponse map[string]any

const maxBodyBytes = 1_048_576

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBodyBytes)
		default:
			return err
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// Error codes let clients tell apart failures that share a status.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeNotFound          = "not_found"
	codeInvalidTransition = "invalid_transition"
	codeNoOp              = "no_op"
	codeWriteConflict     = "write_conflict"
	codeInternal          = "internal_error"
)

func errorResponse(w http.ResponseWriter, r *http.Request, status int, code string, message any) {
	if err := writeJSON(w, status, jsonResponse{"error": message, "code": code}, nil); err != nil {
		slog.ErrorContext(r.Context(), "failed to write error response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	errorResponse(w, r, http.StatusInternalServerError, codeInternal, "the server encountered a problem and could not process your request")
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
}

func failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusUnprocessableEntity, codeValidationFailed, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusNotFound, codeNotFound, err.Error())
}

func conflictResponse(w http.ResponseWriter, r *http.Request, code string, err error) {
	errorResponse(w, r, http.StatusConflict, code, err.Error())
}

// mapServiceErrorToHTTP turns service errors into HTTP responses.
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		notFoundResponse(w, r, err)

	case errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, lifecycle.ErrDatesRequired),
		errors.Is(err, lifecycle.ErrInvalidDateRange),
		errors.Is(err, brackets.ErrDuplicateTeam):
		failedValidationResponse(w, r, err)

	case errors.Is(err, models.ErrInvalidMatchFormat),
		errors.Is(err, models.ErrInvalidTournamentFormat),
		errors.Is(err, models.ErrUnknownTeamSide),
		errors.Is(err, store.ErrInvalidFilter):
		badRequestResponse(w, r, err)

	case errors.Is(err, models.ErrNoOp):
		conflictResponse(w, r, codeNoOp, err)

	case errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, services.ErrWriteConflict):
		conflictResponse(w, r, codeWriteConflict, err)

	case errors.Is(err, models.ErrInvalidTransition):
		conflictResponse(w, r, codeInvalidTransition, err)

	default:
		serverErrorResponse(w, r, err)
	}
}

func getIDFromURL(r *http.Request, paramName string) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, paramName))
	if id == "" {
		return "", fmt.Errorf("missing %s in URL path", paramName)
	}
	return id, nil
}

// readStatusQuery parses the optional ?status= match filter.
func readStatusQuery(r *http.Request) (*models.MatchStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	status := models.MatchStatus(raw)
	switch status {
	case models.MatchStatusUpcoming, models.MatchStatusLive, models.MatchStatusFinished:
		return &status, nil
	}
	return nil, fmt.Errorf("invalid status query parameter %q", raw)
}
