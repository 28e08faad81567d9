// pkg/api/response.go
package api

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ResponseWriter writes consistent JSON responses.
type ResponseWriter struct {
	Writer http.ResponseWriter
	log    logrus.FieldLogger
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newResponseWriter(w http.ResponseWriter, log logrus.FieldLogger) *ResponseWriter {
	return &ResponseWriter{Writer: w, log: log}
}

// SendJSON sends data with the given status code.
func (rw *ResponseWriter) SendJSON(statusCode int, data any) {
	rw.Writer.Header().Set("Content-Type", "application/json")
	rw.Writer.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.Writer).Encode(data); err != nil {
		rw.log.WithError(err).Error("failed to encode response")
	}
}

// SendError sends an error body.
func (rw *ResponseWriter) SendError(statusCode int, message string) {
	rw.SendJSON(statusCode, ErrorResponse{Error: message})
}
