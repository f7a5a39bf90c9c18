package cli

// Error codes for structured error responses.
// These codes are stable and can be relied upon by agents.
const (
	// Configuration errors
	ErrConfigInvalid  = "CONFIG_INVALID"
	ErrOrgNotFound    = "ORG_NOT_FOUND"
	ErrOrgNotSelected = "ORG_NOT_SELECTED"

	// Reference errors
	ErrRefNotFound    = "REF_NOT_FOUND"
	ErrRefAmbiguous   = "REF_AMBIGUOUS"
	ErrKindRequired   = "KIND_REQUIRED"
	ErrAPIUnavailable = "API_UNAVAILABLE"

	// Cache errors
	ErrCacheUnavailable = "CACHE_UNAVAILABLE"
	ErrDrainLocked      = "DRAIN_LOCKED"

	// Input errors
	ErrInvalidInput    = "INVALID_INPUT"
	ErrMissingArgument = "MISSING_ARGUMENT"
	ErrFileReadError   = "FILE_READ_ERROR"
	ErrFileWriteError  = "FILE_WRITE_ERROR"

	// MCP client errors
	ErrMCPClientInvalid    = "MCP_CLIENT_INVALID"
	ErrMCPConfigWriteError = "MCP_CONFIG_WRITE_ERROR"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)
