package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const (
	// UnknownClient is reported when the API omits client_name.
	UnknownClient = "Unknown"
	// ErrorClient labels results of failed calls.
	ErrorClient = "Error"
)

// Result is the normalized outcome of one upstream call. Data is empty
// whenever Err is set.
type Result struct {
	Data       string
	ClientName string
	Err        *Error
}

// OK reports whether the call produced usable data.
func (r Result) OK() bool {
	return r.Err == nil && r.Data != ""
}

func failed(err *Error) Result {
	return Result{ClientName: ErrorClient, Err: err}
}

// envelope is the JSON shape returned by every endpoint.
type envelope struct {
	Data       json.RawMessage `json:"data"`
	ClientName *string         `json:"client_name"`
}

func (e envelope) clientName() string {
	if e.ClientName == nil {
		return UnknownClient
	}
	return *e.ClientName
}

// payloadText extracts the relay text from an opaque data value. JSON strings
// are unquoted; other values are relayed as their JSON text. Falsy values
// (null, "", [], {}, false, 0) report ok=false.
func payloadText(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil || text == "" {
			return "", false
		}
		return text, true
	case 'n', 'f':
		return "", false
	case 't':
		return string(trimmed), true
	case '[', '{':
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return "", false
		}
		if compact.String() == "[]" || compact.String() == "{}" {
			return "", false
		}
		return string(trimmed), true
	default:
		if value, err := strconv.ParseFloat(string(trimmed), 64); err == nil && value == 0 {
			return "", false
		}
		return string(trimmed), true
	}
}
