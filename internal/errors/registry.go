package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Input errors (E100-E109)

	"E100": {
		Category: CategoryInput,
		Message:  "Invalid JSON input",
		Detail:   "The input could not be parsed as JSON.",
	},
	"E101": {
		Category: CategoryInput,
		Message:  "JSON input is not an object",
		Detail:   "Only a JSON object can be encoded as a query string.",
	},
	"E102": {
		Category: CategoryInput,
		Message:  "Invalid base64 input",
		Detail:   "The value is not valid standard or URL-safe base64.",
	},

	// Config errors (E110-E119)

	"E110": {
		Category: CategoryConfig,
		Message:  "Config file could not be read",
		Detail:   "The configuration file exists but could not be opened or read.",
	},
	"E111": {
		Category: CategoryConfig,
		Message:  "Config file could not be parsed",
		Detail:   "The configuration file has a syntax error.",
	},
	"E112": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "A configuration value is out of range or not recognized.",
	},

	// Protocol errors (E120-E129)

	"E120": {
		Category: CategoryProtocol,
		Message:  "Invalid WebSocket message",
		Detail:   "The client sent a message that is not a known type or has a malformed payload.",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
