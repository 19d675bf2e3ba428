package cli

import (
	"strings"
	"testing"

	"pocketbook/internal/budget"
	"pocketbook/internal/core"
)

func TestRenderTable(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Category", "Total"},
		Rows:    [][]string{{"Rent", "800.00"}, {"Transport", "5.50"}},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("table has %d lines, want 6:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "Category") || !strings.Contains(lines[3], "Rent") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	// Numeric columns are right-aligned to the widest cell.
	if !strings.Contains(lines[4], "   5.50 ") {
		t.Fatalf("second column not right-aligned:\n%s", out)
	}
}

func TestRenderTable_Empty(t *testing.T) {
	if out := RenderTable(Table{}); out != "" {
		t.Fatalf("empty table rendered %q", out)
	}
}

func TestRenderStatus(t *testing.T) {
	tests := []struct {
		status budget.Status
		want   string
	}{
		{budget.Status{Kind: budget.Unset}, "No budget limit set"},
		{budget.Status{Kind: budget.Safe, Amount: core.Money{Cents: 250}}, "Remaining: 2.50"},
		{budget.Status{Kind: budget.Exceeded, Amount: core.Money{Cents: 100}}, "exceeded by 1.00"},
	}
	for _, tt := range tests {
		if got := RenderStatus(tt.status); !strings.Contains(got, tt.want) {
			t.Errorf("RenderStatus(%v) = %q, want it to contain %q", tt.status.Kind, got, tt.want)
		}
	}
}
