package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Response is the unified envelope format.
type Response struct {
	Result        string      `json:"result"`
	Data          interface{} `json:"data,omitempty"`
	Code          string      `json:"code,omitempty"`
	Message       string      `json:"message,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

// SuccessResponse creates a success response.
func SuccessResponse(data interface{}) *Response {
	return &Response{
		Result:        "ok",
		Data:          data,
		CorrelationID: generateCorrelationID(),
	}
}

// ErrorResponse creates an error response.
func ErrorResponse(code, message string) *Response {
	return &Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		CorrelationID: generateCorrelationID(),
	}
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	writeResponse(w, http.StatusOK, SuccessResponse(data))
}

// WriteError writes an error envelope with the given HTTP status.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeResponse(w, statusCode, ErrorResponse(code, message))
}

func writeResponse(w http.ResponseWriter, statusCode int, response *Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(w, "encode response: %v", err)
	}
}

var correlationSeq atomic.Int64

func generateCorrelationID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), correlationSeq.Add(1))
}
