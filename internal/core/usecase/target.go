package usecase

import (
	"math"
	"strings"
	"time"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

// ReductionPercent returns (baseline-target)/baseline*100. The second return
// value is false when the metric is undefined: a missing or non-finite input,
// or a baseline that is not strictly positive. A negative result means the
// target exceeds the baseline and is valid.
func ReductionPercent(baseline, target *float64) (float64, bool) {
	if baseline == nil || target == nil {
		return 0, false
	}
	b, t := *baseline, *target
	if !isFinite(b) || !isFinite(t) || b <= 0 {
		return 0, false
	}
	pct := (b - t) * 100 / b
	if !isFinite(pct) {
		return 0, false
	}
	return pct, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// TargetValidator holds the gating predicate for leaving the input step.
type TargetValidator struct {
	minYearOffset int
	now           func() time.Time
}

func NewTargetValidator(policy domain.Policy, now func() time.Time) *TargetValidator {
	if now == nil {
		now = time.Now
	}
	return &TargetValidator{
		minYearOffset: policy.MinTimelineYearOffset,
		now:           now,
	}
}

// MinTimelineYear is the earliest acceptable timeline end year.
func (v *TargetValidator) MinTimelineYear() int {
	return v.now().UTC().Year() + v.minYearOffset
}

// Validate returns nil when the input may progress past the input step, or a
// *domain.ValidationError naming every failing field. Document readiness is
// not part of this check.
func (v *TargetValidator) Validate(input domain.TargetInput) error {
	fields := map[string]string{}

	if strings.TrimSpace(input.CompanyName) == "" {
		fields["company_name"] = "is required"
	}
	if strings.TrimSpace(input.IndustrySector) == "" {
		fields["industry_sector"] = "is required"
	}
	if !validCountryCode(input.CountryCode) {
		fields["country_code"] = "must be a 2-letter country code"
	}
	if strings.TrimSpace(input.NACECode) == "" {
		fields["nace_code"] = "is required"
	}

	switch {
	case input.BaselineValue == nil:
		fields["baseline_value"] = "is required"
	case !isFinite(*input.BaselineValue):
		fields["baseline_value"] = "must be a finite number"
	case *input.BaselineValue <= 0:
		fields["baseline_value"] = "must be greater than zero"
	}
	switch {
	case input.TargetValue == nil:
		fields["target_value"] = "is required"
	case !isFinite(*input.TargetValue):
		fields["target_value"] = "must be a finite number"
	}

	if minYear := v.MinTimelineYear(); input.TimelineEndYear < minYear {
		fields["timeline_end_year"] = "must be " + itoa(minYear) + " or later"
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// CanAdvance is Validate as a predicate.
func (v *TargetValidator) CanAdvance(input domain.TargetInput) bool {
	return v.Validate(input) == nil
}

// CanSubmit additionally requires at least one ready document.
func (v *TargetValidator) CanSubmit(input domain.TargetInput, docs []domain.StagedDocument) bool {
	return v.CanAdvance(input) && len(domain.ReadyDocuments(docs)) > 0
}

func validCountryCode(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
