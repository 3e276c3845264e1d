// Package handlers implements the HTTP surface of the control service.
// Action and composite endpoints write their envelopes verbatim with HTTP
// 200; pool and service errors use the shared Response wrapper with the
// status derived from the error code.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/types"
)

// Response is the wrapper for non-envelope endpoints.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorInfo is the failure payload of a Response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes any value as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 Response around data.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// WriteError maps err to its HTTP status and writes a failure Response.
// Non-typed errors report as INTERNAL_ERROR.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	code := types.GetErrorCode(err)
	message := err.Error()
	var terr *types.Error
	if errors.As(err, &terr) {
		message = terr.Message
	}
	status := code.HTTPStatus()

	if logger != nil {
		logger.Warn("request failed",
			zap.String("code", string(code)),
			zap.String("message", message),
			zap.Int("status", status))
	}
	WriteJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorInfo{Code: string(code), Message: message},
		Timestamp: time.Now().UTC(),
	})
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst
// at its zero value.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return types.NewErrorf(types.ErrInvalidArg, "invalid request body: %v", err)
	}
	return nil
}
