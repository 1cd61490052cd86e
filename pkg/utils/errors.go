package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed     = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError  = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status

	ErrTransport         = errors.New("transport error")              // Any failure to obtain a page body
	ErrParsing           = errors.New("parsing error")                // Expected element or attribute missing, or bad HTML/URL
	ErrMalformedMetadata = errors.New("malformed metadata")           // Present but unusable value, e.g. filename without extension
	ErrNoExtractor       = errors.New("no extractor matches the URL") // Dispatch miss surfaced by outer layers
	ErrSiteDisabled      = errors.New("site disabled by configuration")

	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger/sqlite errors
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// WrapErrorf adds formatted context to err, keeping it unwrappable.
// Returns nil if err is nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging and crawl metadata.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		return categorizeRetryFailure(err)
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "410", "429"} {
			if strings.Contains(errMsg, " "+code+" ") {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrMalformedMetadata):
		return "Content_MalformedMetadata"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrNoExtractor):
		return "Dispatch_NoExtractor"
	case errors.Is(err, ErrSiteDisabled):
		return "Dispatch_SiteDisabled"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	if category := categorizeNetworkError(err); category != "" {
		return "Network_" + category
	}
	if errors.Is(err, ErrTransport) {
		return "Transport_Other"
	}
	return "Unknown"
}

// categorizeRetryFailure labels an error that wraps ErrRetryFailed by its last underlying cause.
func categorizeRetryFailure(err error) string {
	if err == ErrRetryFailed {
		return "RetryFailed_Unknown"
	}
	switch {
	case errors.Is(err, ErrServerHTTPError):
		return "RetryFailed_HTTPServer"
	case errors.Is(err, ErrClientHTTPError):
		return "RetryFailed_HTTPClient"
	}
	if category := categorizeNetworkError(err); category != "" {
		return "RetryFailed_" + category
	}
	return "RetryFailed_NetworkOther"
}

// categorizeNetworkError returns a short network failure label, or "" if err does not look like one.
func categorizeNetworkError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"), strings.Contains(lowerErrMsg, "deadline exceeded"):
		return "Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "DNSLookup"
	case strings.Contains(lowerErrMsg, "tls"), strings.Contains(lowerErrMsg, "certificate"):
		return "TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "ConnectionReset"
	case strings.Contains(lowerErrMsg, "broken pipe"):
		return "BrokenPipe"
	}
	return ""
}
