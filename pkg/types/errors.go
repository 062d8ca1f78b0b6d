package types

import "fmt"

// RefactorError represents errors in refactoring operations
type RefactorError struct {
	Type    ErrorType
	Message string
	File    string
	Line    int
	Column  int
	Cause   error
}

func (e *RefactorError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

func (e *RefactorError) Unwrap() error {
	return e.Cause
}

// Is matches any RefactorError of the same type, so callers can test for a
// category with errors.Is(err, &RefactorError{Type: NotApplicable}).
func (e *RefactorError) Is(target error) bool {
	t, ok := target.(*RefactorError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

type ErrorType int

const (
	ParseError ErrorType = iota
	SymbolNotFound
	InvalidOperation
	FileSystemError
	ConfigError
	NotApplicable
)

func (t ErrorType) String() string {
	switch t {
	case ParseError:
		return "parse_error"
	case SymbolNotFound:
		return "symbol_not_found"
	case InvalidOperation:
		return "invalid_operation"
	case FileSystemError:
		return "filesystem_error"
	case ConfigError:
		return "config_error"
	case NotApplicable:
		return "not_applicable"
	default:
		return "unknown"
	}
}

// ValidationError represents validation failures
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "validation failed: " + e.Issues[0].Description
	}
	return fmt.Sprintf("validation failed with %d issues", len(e.Issues))
}
