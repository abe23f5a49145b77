package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrMissingRequirements = errors.New("missing required inputs or no ready document")
	ErrEvaluationNotFound  = errors.New("evaluation not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrSubmissionFailed    = errors.New("evaluation submission failed")
	ErrTemporary           = errors.New("temporary failure")
	ErrBusy                = errors.New("workflow is busy")
	ErrInvalidTransition   = errors.New("invalid step transition")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError lists the input fields that block a step transition.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// UserMessage renders an error as the plain text shown next to the step it
// occurred in.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case IsKind(err, ErrMissingRequirements):
		return "Missing required inputs or no ready document."
	case IsKind(err, ErrEvaluationNotFound):
		return "The requested evaluation could not be found."
	case IsKind(err, ErrBusy):
		return "Please wait for the current operation to finish."
	case IsKind(err, ErrTemporary):
		return "The scoring service is temporarily unavailable. Please try again."
	}
	var remote *RemoteError
	if errors.As(err, &remote) && strings.TrimSpace(remote.Message) != "" {
		return remote.Message
	}
	return err.Error()
}

// RemoteError carries the human-readable message returned by a collaborator.
type RemoteError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "remote error"
	}
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}
