package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Global JSON output flag
var jsonOutput bool

// stdout is where command output goes. Tests swap it.
var stdout io.Writer = os.Stdout

// Response is the JSON envelope of every command in --json mode.
type Response struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
	Meta  *Meta      `json:"meta,omitempty"`
}

// ErrorInfo is a structured error. Code is stable for agents.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Meta carries response metadata.
type Meta struct {
	Count  int    `json:"count,omitempty"`
	Source string `json:"source,omitempty"`
	Cached bool   `json:"cached,omitempty"`
	Stale  bool   `json:"stale,omitempty"`
	Tenant string `json:"tenant,omitempty"`
	TimeMs int64  `json:"time_ms,omitempty"`
}

func outputJSON(resp Response) {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

func outputSuccess(data any, meta *Meta) {
	outputJSON(Response{OK: true, Data: data, Meta: meta})
}

func outputError(code, message string, details any, suggestion string) {
	outputJSON(Response{
		OK: false,
		Error: &ErrorInfo{
			Code:       code,
			Message:    message,
			Details:    details,
			Suggestion: suggestion,
		},
	})
}

func isJSONOutput() bool {
	return jsonOutput
}

// handleError reports err in the active output mode. In JSON mode the error
// is written as an envelope and nil is returned so cobra stays quiet.
func handleError(code string, err error, suggestion string) error {
	if jsonOutput {
		outputError(code, err.Error(), nil, suggestion)
		return nil
	}
	if suggestion != "" {
		return fmt.Errorf("%w\n\n%s", err, suggestion)
	}
	return err
}

// handleErrorMsg is handleError for a plain message.
func handleErrorMsg(code, message, suggestion string) error {
	return handleError(code, fmt.Errorf("%s", message), suggestion)
}

// handleErrorWithDetails reports an error with structured details in JSON mode.
func handleErrorWithDetails(code, message, suggestion string, details any) error {
	if jsonOutput {
		outputError(code, message, details, suggestion)
		return nil
	}
	return handleErrorMsg(code, message, suggestion)
}
