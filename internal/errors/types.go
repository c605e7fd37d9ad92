// Package errors defines the structured error taxonomy used by the build
// pipeline: compilation, missing entry point, component execution and asset
// build failures, plus the I/O and configuration errors around them.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeCompilation ErrorType = "compilation"
	ErrorTypeNoExport    ErrorType = "no_export"
	ErrorTypeExecution   ErrorType = "execution"
	ErrorTypeAssetBuild  ErrorType = "asset_build"
	ErrorTypeIO          ErrorType = "io"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeInternal    ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeTranspileFailed = "ERR_TRANSPILE_FAILED"
	ErrCodeBundleFailed    = "ERR_BUNDLE_FAILED"
	ErrCodeLoadFailed      = "ERR_LOAD_FAILED"
	ErrCodeNoExport        = "ERR_NO_EXPORT"
	ErrCodeRenderFailed    = "ERR_RENDER_FAILED"
	ErrCodeStyleFailed     = "ERR_STYLE_FAILED"
	ErrCodeScriptFailed    = "ERR_SCRIPT_FAILED"
	ErrCodeFileNotFound    = "ERR_FILE_NOT_FOUND"
	ErrCodeWriteFailed     = "ERR_WRITE_FAILED"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeInternalError   = "ERR_INTERNAL"
)

// SiteError is a structured error type with context.
type SiteError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is matches another SiteError of the same type. An empty code on the
// target matches any code, so the Err* sentinels below work with errors.Is.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if !errors.As(target, &t) {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// WithContext adds context information to the error.
func (e *SiteError) WithContext(key string, value interface{}) *SiteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *SiteError) WithLocation(filePath string, line, column int) *SiteError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// Sentinels for errors.Is checks.
var (
	ErrCompilation = &SiteError{Type: ErrorTypeCompilation}
	ErrNoExport    = &SiteError{Type: ErrorTypeNoExport}
	ErrExecution   = &SiteError{Type: ErrorTypeExecution}
	ErrAssetBuild  = &SiteError{Type: ErrorTypeAssetBuild}
)

// NewCompilationError creates an error for source that cannot be parsed,
// transpiled, bundled or loaded.
func NewCompilationError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:    ErrorTypeCompilation,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNoExportError creates an error for a module with no usable default
// entry point.
func NewNoExportError(filePath, message string) *SiteError {
	return &SiteError{
		Type:     ErrorTypeNoExport,
		Code:     ErrCodeNoExport,
		Message:  message,
		FilePath: filePath,
	}
}

// NewExecutionError wraps an error thrown while invoking a component.
func NewExecutionError(filePath string, cause error) *SiteError {
	return &SiteError{
		Type:     ErrorTypeExecution,
		Code:     ErrCodeRenderFailed,
		Message:  "component invocation failed",
		Cause:    cause,
		FilePath: filePath,
	}
}

// NewAssetBuildError creates an error for a style or script source that
// failed its build step.
func NewAssetBuildError(code, filePath string, cause error) *SiteError {
	return &SiteError{
		Type:     ErrorTypeAssetBuild,
		Code:     code,
		Message:  "asset build failed",
		Cause:    cause,
		FilePath: filePath,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SiteError {
	return &SiteError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func isType(err error, typ ErrorType) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Type == typ
	}

	return false
}

// IsCompilationError reports whether err is a compilation failure.
func IsCompilationError(err error) bool { return isType(err, ErrorTypeCompilation) }

// IsNoExportError reports whether err is a missing entry point failure.
func IsNoExportError(err error) bool { return isType(err, ErrorTypeNoExport) }

// IsExecutionError reports whether err came from invoking a component.
func IsExecutionError(err error) bool { return isType(err, ErrorTypeExecution) }

// IsAssetBuildError reports whether err is an asset build failure.
func IsAssetBuildError(err error) bool { return isType(err, ErrorTypeAssetBuild) }

// IsConfigError reports whether err is a configuration failure.
func IsConfigError(err error) bool { return isType(err, ErrorTypeConfig) }

// IsIOError reports whether err is a filesystem failure.
func IsIOError(err error) bool { return isType(err, ErrorTypeIO) }
