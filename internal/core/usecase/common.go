package usecase

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

func itoa(v int) string {
	return strconv.Itoa(v)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type noopObserver struct{}

func (noopObserver) UploadFinished(domain.StagedStatus)       {}
func (noopObserver) SubmissionFinished(string, time.Duration) {}
func (noopObserver) SubmissionSuperseded()                    {}
func (noopObserver) ExportFinished(string, error)             {}
func (noopObserver) Reconstructed(string)                     {}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
