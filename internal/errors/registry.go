package errors

import "sort"

// Registered error codes.
const (
	CodeMissingConfig      = "E101"
	CodeInvalidDeclaration = "E102"
	CodeSourceFailed       = "E103"
	CodeTemplateMismatch   = "E104"
	CodeUnknownRoute       = "E105"
	CodeInflowFailed       = "E106"
	CodeConfigNotFound     = "E110"
	CodeConfigInvalid      = "E111"
	CodeNavigationRejected = "E201"
	CodeProtocol           = "E301"
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E101-E199)
	// ============================================

	CodeMissingConfig: {
		Category:   CategoryConfig,
		Message:    "Configuration for deep linking is missing in route definition",
		Detail:     "The activated route carries no synchronization config or names no view type. Deep-linked views cannot be set up without one.",
		Suggestion: "Declare the view and its params/queryParams on the route",
	},
	CodeInvalidDeclaration: {
		Category:   CategoryConfig,
		Message:    "Invalid parameter declaration",
		Detail:     "Every declaration needs a non-empty, unique name and a type of string, number or json.",
		Suggestion: "Check the name and type of each entry in params and queryParams",
	},
	CodeSourceFailed: {
		Category: CategoryConfig,
		Message:  "Failed to load route configuration",
		Detail:   "The configuration source could not be read or decoded.",
	},
	CodeTemplateMismatch: {
		Category: CategoryConfig,
		Message:  "Path parameter is not part of the route template",
		Detail:   "A path parameter is declared that the route pattern does not contain, so it can never be written to the URL.",
	},
	CodeUnknownRoute: {
		Category: CategoryConfig,
		Message:  "No route matches the requested pattern",
	},

	CodeConfigNotFound: {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create deeplink.json or pass --config",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
	},
	CodeInflowFailed: {
		Category: CategorySync,
		Message:  "URL value cannot be applied to the view",
		Detail:   "A parameter changed in the URL but could not be converted to the declared type or stored in the view field. The remaining parameters of that change were not applied.",
	},

	// ============================================
	// Navigation Errors (E201-E299)
	// ============================================

	CodeNavigationRejected: {
		Category: CategoryNavigation,
		Message:  "Navigation rejected by the host router",
	},

	// ============================================
	// Protocol Errors (E301-E399)
	// ============================================

	CodeProtocol: {
		Category: CategoryProtocol,
		Message:  "Malformed client message",
	},
}

// GetAllCodes returns all registered error codes in order.
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

// Register adds or replaces an error template.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
