package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is used when the session store cannot serve the request
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeInvalidQuantity is used when a quantity is not a positive integer
	ErrCodeInvalidQuantity = "ERR_INVALID_QUANTITY"
	// ErrCodeInvalidProduct is used when a product snapshot fails its checks
	ErrCodeInvalidProduct = "ERR_INVALID_PRODUCT"
	// ErrCodeInvalidCredentials is used when login or registration input is malformed
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the backend rejects the session
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeCartItemNotFound is used when a cart line id is unknown
	ErrCodeCartItemNotFound = "ERR_CART_ITEM_NOT_FOUND"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Upstream error codes
const (
	// ErrCodeUpstream is used when the backend API fails
	ErrCodeUpstream = "ERR_UPSTREAM"
	// ErrCodeStorage is used when the guest store fails
	ErrCodeStorage = "ERR_STORAGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeInvalidQuantity:    http.StatusBadRequest,
	ErrCodeInvalidProduct:     http.StatusBadRequest,
	ErrCodeInvalidCredentials: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeCartItemNotFound: http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	ErrCodeUpstream: http.StatusBadGateway,
	ErrCodeStorage:  http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":           ErrCodeNotFound,
	"INVALID_INPUT":       ErrCodeInvalidInput,
	"INVALID_STATE":       ErrCodeInvalidState,
	"UNAUTHORIZED":        ErrCodeUnauthorized,
	"INVALID_QUANTITY":    ErrCodeInvalidQuantity,
	"CART_ITEM_NOT_FOUND": ErrCodeCartItemNotFound,
	"INVALID_PRODUCT":     ErrCodeInvalidProduct,
	"INVALID_PRICE":       ErrCodeInvalidProduct,
	"INVALID_KIND":        ErrCodeInvalidProduct,
	"INVALID_CREDENTIALS": ErrCodeInvalidCredentials,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
