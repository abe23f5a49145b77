package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
)

type documentFlag struct {
	docType domain.DocumentType
	path    string
}

// parseDocumentFlags reads --doc values of the form type=path.
func parseDocumentFlags(values []string) ([]documentFlag, error) {
	out := make([]documentFlag, 0, len(values))
	for _, v := range values {
		kind, path, ok := strings.Cut(v, "=")
		kind, path = strings.TrimSpace(kind), strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, fmt.Errorf("--doc %q: expected type=path", v)
		}
		docType := domain.DocumentType(kind)
		if !docType.Valid() {
			return nil, fmt.Errorf("--doc %q: unknown document type %q", v, kind)
		}
		out = append(out, documentFlag{docType: docType, path: path})
	}
	return out, nil
}

func printDocument(w io.Writer, d domain.StagedDocument) {
	primary := ""
	if d.IsPrimary {
		primary = " (primary)"
	}
	line := fmt.Sprintf("  %-10s %s [%s]%s", d.Status, d.Filename, d.DocumentType, primary)
	if d.Error != "" {
		line += ": " + d.Error
	}
	fmt.Fprintln(w, line)
}

func printResult(w io.Writer, s domain.WorkflowSession, asJSON bool) error {
	if s.Record == nil {
		return fmt.Errorf("no result")
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s.Record)
	}

	meta := s.Record.Metadata
	fmt.Fprintf(w, "Company:  %s\n", meta.CompanyName)
	if meta.Grade != "" {
		fmt.Fprintf(w, "Grade:    %s\n", meta.Grade)
	}
	if meta.Decision != "" {
		fmt.Fprintf(w, "Decision: %s\n", meta.Decision)
	}
	if s.EvaluationID != nil {
		fmt.Fprintf(w, "Saved as evaluation %d\n", *s.EvaluationID)
	}
	if s.PersistenceWarning != "" {
		fmt.Fprintf(w, "Warning:  %s\n", s.PersistenceWarning)
	}
	return nil
}

func printHistory(w io.Writer, items []domain.EvaluationSummary) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No past evaluations.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPANY\tGRADE\tDECISION\tCREATED")
	for _, item := range items {
		created := ""
		if !item.CreatedAt.IsZero() {
			created = item.CreatedAt.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", item.ID, item.CompanyName, item.Grade, item.Decision, created)
	}
	_ = tw.Flush()
}
