package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/brizzai/llm-server/internal/auth/constants"
	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/logger"
	"go.uber.org/zap"
)

// WriteJSON writes a JSON response with status 200
func WriteJSON(w http.ResponseWriter, data interface{}) {
	WriteJSONStatus(w, http.StatusOK, data)
}

// WriteJSONStatus writes a JSON response with the given status
func WriteJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// WriteError writes a JSON error response. 401 responses carry a Bearer challenge.
func WriteError(w http.ResponseWriter, code, message string, status int) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", bearerChallenge(code, message))
	}
	WriteJSONStatus(w, status, map[string]string{
		"error":             code,
		"error_description": message,
	})
}

// WriteErr maps err onto the error taxonomy and writes it
func WriteErr(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	WriteError(w, ErrorCode(err), publicMessage(err, status), status)
}

// StatusFor maps an error to the HTTP status the client sees
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrProviderNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrAuthExchangeFailed):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the machine-readable error code for err
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrProviderNotFound):
		return "provider_not_found"
	case errors.Is(err, models.ErrUnauthorized):
		return "invalid_token"
	case errors.Is(err, models.ErrAuthExchangeFailed):
		return "auth_exchange_failed"
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "internal_error"
	}
}

// Internal errors are not echoed back
func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		if errors.Is(err, models.ErrUpstreamUnavailable) {
			return models.ErrUpstreamUnavailable.Error()
		}
		return "internal server error"
	}
	return err.Error()
}

func bearerChallenge(code, message string) string {
	// quoted-string values cannot contain raw quotes
	message = strings.ReplaceAll(message, `"`, `'`)
	return fmt.Sprintf(`%s realm="%s", error="%s", error_description="%s"`, constants.TokenType, constants.Realm, code, message)
}
