package usecase

import (
	"errors"
	"math"
	"testing"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

func TestReductionPercent(t *testing.T) {
	tests := []struct {
		name     string
		baseline *float64
		target   *float64
		want     float64
		defined  bool
	}{
		{name: "reduction", baseline: domain.Float(100000), target: domain.Float(54000), want: 46, defined: true},
		{name: "increase is negative", baseline: domain.Float(100000), target: domain.Float(120000), want: -20, defined: true},
		{name: "target zero", baseline: domain.Float(250), target: domain.Float(0), want: 100, defined: true},
		{name: "zero baseline", baseline: domain.Float(0), target: domain.Float(10)},
		{name: "negative baseline", baseline: domain.Float(-5), target: domain.Float(1)},
		{name: "nan baseline", baseline: domain.Float(math.NaN()), target: domain.Float(1)},
		{name: "inf target", baseline: domain.Float(10), target: domain.Float(math.Inf(1))},
		{name: "missing target", baseline: domain.Float(10)},
		{name: "missing baseline", target: domain.Float(10)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ReductionPercent(tc.baseline, tc.target)
			if ok != tc.defined {
				t.Fatalf("defined = %v, want %v", ok, tc.defined)
			}
			if !ok {
				return
			}
			if math.IsNaN(got) || math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("ReductionPercent() = %v, want %v", got, tc.want)
			}
			again, _ := ReductionPercent(tc.baseline, tc.target)
			if again != got {
				t.Fatalf("expected identical result on recompute, got %v then %v", got, again)
			}
		})
	}
}

func TestValidateAcceptsCompleteInput(t *testing.T) {
	v := NewTargetValidator(domain.DefaultPolicy(), fixedClock)
	if err := v.Validate(validInput()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateAcceptsEmissionsIncrease(t *testing.T) {
	v := NewTargetValidator(domain.DefaultPolicy(), fixedClock)
	input := validInput()
	input.TargetValue = domain.Float(120000)
	if err := v.Validate(input); err != nil {
		t.Fatalf("expected increase to pass validation, got %v", err)
	}
}

func TestValidateReportsEveryFailingField(t *testing.T) {
	v := NewTargetValidator(domain.DefaultPolicy(), fixedClock)
	input := domain.TargetInput{
		CountryCode:     "S1",
		BaselineValue:   domain.Float(0),
		TimelineEndYear: 2026,
	}

	err := v.Validate(input)
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput kind, got %v", err)
	}
	for _, field := range []string{"company_name", "industry_sector", "country_code", "nace_code", "baseline_value", "target_value", "timeline_end_year"} {
		if _, ok := validation.Fields[field]; !ok {
			t.Fatalf("expected %s in failing fields, got %+v", field, validation.Fields)
		}
	}
}

func TestValidateTimelinePolicyMinimum(t *testing.T) {
	policy := domain.DefaultPolicy()
	policy.MinTimelineYearOffset = 3
	v := NewTargetValidator(policy, fixedClock)
	if v.MinTimelineYear() != 2029 {
		t.Fatalf("expected min year 2029, got %d", v.MinTimelineYear())
	}

	input := validInput()
	input.TimelineEndYear = 2028
	if v.CanAdvance(input) {
		t.Fatalf("expected 2028 to be rejected")
	}
	input.TimelineEndYear = 2029
	if !v.CanAdvance(input) {
		t.Fatalf("expected 2029 to be accepted")
	}
}

func TestCanSubmitRequiresReadyDocument(t *testing.T) {
	v := NewTargetValidator(domain.DefaultPolicy(), fixedClock)
	id := int64(7)

	cases := map[string][]domain.StagedDocument{
		"none":       nil,
		"uploading":  {{LocalID: "a", Status: domain.StagedUploading}},
		"error":      {{LocalID: "b", Status: domain.StagedError}},
		"no id":      {{LocalID: "c", Status: domain.StagedReady}},
		"processing": {{LocalID: "d", Status: domain.StagedProcessing, ServerID: &id}},
	}
	for name, docs := range cases {
		if v.CanSubmit(validInput(), docs) {
			t.Fatalf("%s: expected CanSubmit false", name)
		}
	}

	ready := []domain.StagedDocument{
		{LocalID: "e", Status: domain.StagedError},
		{LocalID: "f", Status: domain.StagedReady, ServerID: &id},
	}
	if !v.CanSubmit(validInput(), ready) {
		t.Fatalf("expected CanSubmit true with one ready document")
	}
}
