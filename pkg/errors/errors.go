package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Provider errors (1xxx)
	ErrCodeNotAuthenticated ErrorCode = "CCM1001"
	ErrCodeInvalidResponse  ErrorCode = "CCM1002"
	ErrCodeAPIError         ErrorCode = "CCM1003"
	ErrCodeTransportFailed  ErrorCode = "CCM1004"

	// Configuration errors (2xxx)
	ErrCodeConfigInvalid ErrorCode = "CCM2001"
	ErrCodeConfigIO      ErrorCode = "CCM2002"

	// Working copy errors (3xxx)
	ErrCodeCloneFailed   ErrorCode = "CCM3001"
	ErrCodeNoLocalPath   ErrorCode = "CCM3002"
	ErrCodeCommandFailed ErrorCode = "CCM3003"
	ErrCodeRepoNotFound  ErrorCode = "CCM3004"

	// Session errors (4xxx)
	ErrCodeNoActiveSession ErrorCode = "CCM4001"
	ErrCodeEmptyCommand    ErrorCode = "CCM4002"
	ErrCodeUnknownAgent    ErrorCode = "CCM4003"

	// Storage errors (5xxx)
	ErrCodeCredentialStore ErrorCode = "CCM5001"
	ErrCodeUsageStore      ErrorCode = "CCM5002"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "CCM9001"
)

// Sentinels for errors.Is; comparison is by code only.
var (
	ErrNotAuthenticated = &AppError{Code: ErrCodeNotAuthenticated}
	ErrInvalidResponse  = &AppError{Code: ErrCodeInvalidResponse}
	ErrAPI              = &AppError{Code: ErrCodeAPIError}
	ErrTransport        = &AppError{Code: ErrCodeTransportFailed}
	ErrCloneFailed      = &AppError{Code: ErrCodeCloneFailed}
	ErrNoLocalPath      = &AppError{Code: ErrCodeNoLocalPath}
	ErrCommandFailed    = &AppError{Code: ErrCodeCommandFailed}
	ErrNoActiveSession  = &AppError{Code: ErrCodeNoActiveSession}
	ErrConfigInvalid    = &AppError{Code: ErrCodeConfigInvalid}
	ErrRepoNotFound     = &AppError{Code: ErrCodeRepoNotFound}
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL"
	SeverityError    ErrorSeverity = "ERROR"
	SeverityWarning  ErrorSeverity = "WARNING"
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	var inner *AppError
	if errors.As(err, &inner) {
		for k, v := range inner.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

var credentialNames = map[string]string{
	"github": "GitHub token",
	"claude": "Claude API key",
	"codex":  "OpenAI API key",
}

// NotAuthenticated reports a missing credential for a provider
func NotAuthenticated(provider string) *AppError {
	what, ok := credentialNames[provider]
	if !ok {
		what = provider + " credentials"
	}
	return New(ErrCodeNotAuthenticated, fmt.Sprintf("%s not configured", what)).
		WithContext("provider", provider).
		WithSuggestions(fmt.Sprintf("Run 'ccmanager auth login %s'", provider))
}

// InvalidResponse reports a response that could not be interpreted
func InvalidResponse(provider string, cause error) *AppError {
	err := New(ErrCodeInvalidResponse, fmt.Sprintf("Invalid response from %s", provider)).
		WithContext("provider", provider)
	err.Cause = cause
	return err
}

// APIError reports a non-success HTTP status from a remote API
func APIError(provider string, statusCode int) *AppError {
	err := New(ErrCodeAPIError, fmt.Sprintf("API error: HTTP %d", statusCode)).
		WithContext("provider", provider).
		WithContext("status_code", statusCode)
	switch {
	case statusCode == 401 || statusCode == 403:
		_ = err.WithSuggestions("Check that the stored credential is valid and has the required scopes")
	case statusCode == 429:
		_ = err.WithSuggestions("Rate limited; wait before retrying").AsRecoverable()
	case statusCode >= 500:
		_ = err.AsRecoverable()
	}
	return err
}

// TransportError reports a failure to reach a remote API
func TransportError(provider string, cause error) *AppError {
	return Wrap(cause, ErrCodeTransportFailed, fmt.Sprintf("Could not reach %s", provider)).
		WithContext("provider", provider).
		WithSuggestions("Check your network connection").
		AsRecoverable()
}

// CloneFailed reports a clone that exited unsuccessfully
func CloneFailed(url string, exitCode int, output string) *AppError {
	return New(ErrCodeCloneFailed, "Failed to clone repository").
		WithContext("url", url).
		WithContext("exit_code", exitCode).
		WithContext("output", truncateString(output, 500))
}

// NoLocalPath reports a repository that has no working copy
func NoLocalPath(repository string) *AppError {
	return New(ErrCodeNoLocalPath, "Repository has no local path").
		WithContext("repository", repository).
		WithSuggestions(fmt.Sprintf("Clone it first with 'ccmanager repo clone %s'", repository))
}

// CommandFailed reports a source control command that exited unsuccessfully
func CommandFailed(command string, exitCode int, output string) *AppError {
	return New(ErrCodeCommandFailed, "Git command failed").
		WithContext("command", command).
		WithContext("exit_code", exitCode).
		WithContext("output", truncateString(output, 500))
}

// RepositoryNotFound reports a reference that matches no listed repository
func RepositoryNotFound(ref string) *AppError {
	return New(ErrCodeRepoNotFound, fmt.Sprintf("Repository %q not found", ref)).
		WithContext("repository", ref).
		WithSuggestions("Run 'ccmanager repo sync' or 'ccmanager repo add'")
}

// NoActiveSession reports a command submitted while no session is current
func NoActiveSession() *AppError {
	return New(ErrCodeNoActiveSession, "No active session").
		WithSeverity(SeverityWarning).
		WithSuggestions("Start a session for a repository before submitting commands")
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(fmt.Sprintf("Check the '%s' setting", field))
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// APIStatus extracts the HTTP status code carried by an ApiError, or 0
func APIStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code == ErrCodeAPIError {
		if code, ok := appErr.Context["status_code"].(int); ok {
			return code
		}
	}
	return 0
}

// Describe returns the human-readable message of an error without codes or suggestions
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
