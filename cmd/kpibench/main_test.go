package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

func TestParseDocumentFlags(t *testing.T) {
	docs, err := parseDocumentFlags([]string{"sustainability_report=report.pdf", " targets_document = sbti.pdf "})
	if err != nil {
		t.Fatalf("parseDocumentFlags() error = %v", err)
	}
	if len(docs) != 2 || docs[1].docType != domain.DocumentTargets || docs[1].path != "sbti.pdf" {
		t.Fatalf("unexpected docs %+v", docs)
	}

	for _, bad := range []string{"report.pdf", "brochure=a.pdf", "other="} {
		if _, err := parseDocumentFlags([]string{bad}); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestPrintResultShowsWarning(t *testing.T) {
	var buf bytes.Buffer
	session := domain.WorkflowSession{
		Step:               domain.StepResult,
		PersistenceWarning: "not saved",
		Record: &domain.EvaluationRecord{
			Result:   domain.EvaluationResult(`{"grade":"B"}`),
			Metadata: domain.EvaluationSummary{CompanyName: "Acme", Grade: "B"},
		},
	}
	if err := printResult(&buf, session, false); err != nil {
		t.Fatalf("printResult() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Grade:    B") || !strings.Contains(out, "Warning:  not saved") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(out, "Saved as evaluation") {
		t.Fatalf("non-durable result must not claim an id")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"evaluate", "resume", "history", "export", "reset"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %s, got %v", name, err)
		}
	}
}
