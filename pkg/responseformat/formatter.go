// Package responseformat writes API responses as JSON or MessagePack
package responseformat

import (
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// ContentTypeMsgPack is sent with MessagePack bodies
const ContentTypeMsgPack = "application/x-msgpack"

// Formatter handles encoding and writing responses in JSON or MessagePack format
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error string `json:"error"`
}

// WantsMsgPack reports whether the request asked for format=msgpack
func WantsMsgPack(req *http.Request) bool {
	return req.URL.Query().Get("format") == "msgpack"
}

// WriteResponse writes data with the given status. JSON is the default
// format; MessagePack is used when format=msgpack is specified.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	// Always set CORS header
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if WantsMsgPack(req) {
		// Types with their own JSON shape (derived fields) keep it in MessagePack
		if m, ok := data.(json.Marshaler); ok {
			raw, err := m.MarshalJSON()
			if err != nil {
				return err
			}
			return f.WriteRawJSON(w, req, status, raw)
		}
		return f.writeMsgPack(w, status, data)
	}

	return f.writeJSON(w, status, data)
}

// WriteError writes an ErrorBody with the given status
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, msg string) error {
	return f.WriteResponse(w, req, status, ErrorBody{Error: msg})
}

// WriteRawJSON writes pre-encoded JSON, converting it when MessagePack is requested
func (f *Formatter) WriteRawJSON(w http.ResponseWriter, req *http.Request, status int, jsonBytes []byte) error {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if WantsMsgPack(req) {
		var data any
		if err := json.Unmarshal(jsonBytes, &data); err != nil {
			return err
		}
		return f.writeMsgPack(w, status, data)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(jsonBytes)
	return err
}

func (f *Formatter) writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", ContentTypeMsgPack)
	w.WriteHeader(status)
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}
