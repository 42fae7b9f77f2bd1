package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes error on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	return val, true
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryBool extracts and parses a boolean query parameter
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for query param %s: %s", key, str)
	}
	return val, nil
}

// Pagination holds the page/size window parsed from query parameters
type Pagination struct {
	Page int
	Size int
}

// Offset returns the SQL offset for the window
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Size
}

// ParsePagination parses page/size query parameters with bounds applied
func ParsePagination(r *http.Request) Pagination {
	page, err := ParseQueryInt(r, "page", 1)
	if err != nil || page < 1 {
		page = 1
	}
	size, err := ParseQueryInt(r, "size", 20)
	if err != nil || size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return Pagination{Page: page, Size: size}
}

// Validator is a function that validates a value and returns a field name
// and message when invalid
type Validator func() (bool, string, string)

// RequireNonEmpty validates that a string field is not empty
func RequireNonEmpty(value, fieldName string) Validator {
	return func() (bool, string, string) {
		if value == "" {
			return false, fieldName, fieldName + " is required"
		}
		return true, "", ""
	}
}

// RequirePositive validates that an integer is positive
func RequirePositive(value int64, fieldName string) Validator {
	return func() (bool, string, string) {
		if value <= 0 {
			return false, fieldName, fieldName + " must be positive"
		}
		return true, "", ""
	}
}

// ValidateAll runs all validators and writes a single 400 with field details
// when any fail
func ValidateAll(w http.ResponseWriter, validators ...Validator) bool {
	details := map[string]string{}
	for _, validator := range validators {
		if valid, field, msg := validator(); !valid {
			details[field] = msg
		}
	}
	if len(details) > 0 {
		WriteValidationError(w, "validation failed", details)
		return false
	}
	return true
}
