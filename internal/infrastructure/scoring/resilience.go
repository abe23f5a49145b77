package scoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "scoring status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("scoring %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("scoring %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func classifyScoringError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// toDomainError maps transport failures onto domain kinds. Status errors
// keep the service's own message for display.
func toDomainError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		remote := &domain.RemoteError{
			Operation:  operation,
			StatusCode: statusErr.StatusCode,
			Message:    remoteMessage(statusErr.Body),
		}
		switch {
		case statusErr.StatusCode == http.StatusNotFound && strings.HasPrefix(operation, "fetch"):
			return domain.WrapError(domain.ErrEvaluationNotFound, operation, remote)
		case statusErr.StatusCode == http.StatusNotFound && strings.HasPrefix(operation, "document"):
			return domain.WrapError(domain.ErrDocumentNotFound, operation, remote)
		case statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusUnprocessableEntity:
			return domain.WrapError(domain.ErrInvalidInput, operation, remote)
		case isRetryableHTTPStatus(statusErr.StatusCode):
			return domain.WrapError(domain.ErrTemporary, operation, remote)
		default:
			return remote
		}
	}

	if classifyScoringError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
