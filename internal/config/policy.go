package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

// policyFile is the YAML shape of POLICY_PATH. Absent keys keep the value
// coming from the environment.
type policyFile struct {
	MinTimelineYearOffset *int    `yaml:"min_timeline_year_offset"`
	HistoryLimit          *int    `yaml:"history_limit"`
	ExportFallback        *string `yaml:"export_fallback"`
	VerifyArtifacts       *bool   `yaml:"verify_artifacts"`
	DocumentPolling       *struct {
		IntervalMS  *int `yaml:"interval_ms"`
		MaxAttempts *int `yaml:"max_attempts"`
	} `yaml:"document_polling"`
}

// Policy returns the workflow policy from the environment, overlaid with
// the policy file when POLICY_PATH is set.
func (c Config) Policy() (domain.Policy, error) {
	policy := domain.DefaultPolicy()
	policy.MinTimelineYearOffset = c.MinTimelineYearOffset
	policy.HistoryLimit = c.HistoryLimit
	policy.ExportFallback = domain.ExportFallbackPolicy(strings.TrimSpace(c.ExportFallbackPolicy))
	policy.VerifyArtifacts = c.ExportVerifyPDF
	policy.DocumentPollIntervalMS = c.DocumentPollIntervalMS
	policy.DocumentPollMaxAttempts = c.DocumentPollMaxAttempts

	if strings.TrimSpace(c.PolicyPath) != "" {
		var err error
		policy, err = LoadPolicy(c.PolicyPath, policy)
		if err != nil {
			return domain.Policy{}, err
		}
	}
	return validatePolicy(policy)
}

// LoadPolicy overlays the YAML file at path onto base.
func LoadPolicy(path string, base domain.Policy) (domain.Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	out := base
	if file.MinTimelineYearOffset != nil {
		out.MinTimelineYearOffset = *file.MinTimelineYearOffset
	}
	if file.HistoryLimit != nil {
		out.HistoryLimit = *file.HistoryLimit
	}
	if file.ExportFallback != nil {
		out.ExportFallback = domain.ExportFallbackPolicy(strings.TrimSpace(*file.ExportFallback))
	}
	if file.VerifyArtifacts != nil {
		out.VerifyArtifacts = *file.VerifyArtifacts
	}
	if poll := file.DocumentPolling; poll != nil {
		if poll.IntervalMS != nil {
			out.DocumentPollIntervalMS = *poll.IntervalMS
		}
		if poll.MaxAttempts != nil {
			out.DocumentPollMaxAttempts = *poll.MaxAttempts
		}
	}
	return out, nil
}

func validatePolicy(p domain.Policy) (domain.Policy, error) {
	if p.MinTimelineYearOffset < 0 {
		return domain.Policy{}, domain.WrapError(domain.ErrInvalidInput, "policy", fmt.Errorf("min timeline year offset must be >= 0, got %d", p.MinTimelineYearOffset))
	}
	if p.ExportFallback == "" {
		p.ExportFallback = domain.FallbackRenderPayload
	}
	if !p.ExportFallback.Valid() {
		return domain.Policy{}, domain.WrapError(domain.ErrInvalidInput, "policy", fmt.Errorf("unknown export fallback %q", p.ExportFallback))
	}
	def := domain.DefaultPolicy()
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = def.HistoryLimit
	}
	if p.DocumentPollIntervalMS <= 0 {
		p.DocumentPollIntervalMS = def.DocumentPollIntervalMS
	}
	if p.DocumentPollMaxAttempts <= 0 {
		p.DocumentPollMaxAttempts = def.DocumentPollMaxAttempts
	}
	return p, nil
}
