package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// transientPublishErrors clear up once the connection is re-established.
var transientPublishErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
}

func isTransientPublishError(err error) bool {
	if resilience.IsCircuitOpen(err) {
		return true
	}
	for _, target := range transientPublishErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case isTransientPublishError(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// publishFailure marks connection problems as temporary so the ledger write
// is reported as degraded rather than as bad input.
func publishFailure(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) || !isTransientPublishError(err) {
		return err
	}
	return domain.WrapError(domain.ErrTemporary, "publish evaluation event", err)
}
