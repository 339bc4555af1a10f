package parser

import (
	"testing"

	"github.com/battery-insight/backend/internal/models"
)

func TestExtractPower(t *testing.T) {
	t.Run("uid and system bucket rows", func(t *testing.T) {
		sink := &anomalySink{}
		lines := []sectionLine{
			{num: 10, text: "Uid u0a123: 45.2 ( cpu=20.1 wake=5.2 )"},
			{num: 11, text: "Uid 1000: 30.1"},
			{num: 12, text: "Screen: 120"},
			{num: 13, text: "Cell standby: 12.3"},
		}

		rows := extractPower(lines, sink)

		if len(rows) != 4 {
			t.Fatalf("expected 4 rows, got %d", len(rows))
		}
		if rows[0].token != "u0a123" || rows[0].mah != 45.2 {
			t.Errorf("row 0 = %q/%v, want u0a123/45.2", rows[0].token, rows[0].mah)
		}
		if rows[1].token != "1000" {
			t.Errorf("row 1 token = %q, want 1000", rows[1].token)
		}
		if rows[2].token != "Screen" || rows[2].mah != 120 {
			t.Errorf("row 2 = %q/%v, want Screen/120", rows[2].token, rows[2].mah)
		}
		if rows[3].token != "Cell standby" {
			t.Errorf("row 3 token = %q, want %q", rows[3].token, "Cell standby")
		}
	})

	t.Run("parenthesized friendly name", func(t *testing.T) {
		sink := &anomalySink{}
		lines := []sectionLine{{num: 1, text: "Uid u0a123 (Maps): 45.2"}}

		rows := extractPower(lines, sink)

		if len(rows) != 1 {
			t.Fatalf("expected 1 row, got %d", len(rows))
		}
		if rows[0].token != "u0a123" {
			t.Errorf("token = %q, want u0a123", rows[0].token)
		}
		if rows[0].friendly != "Maps" {
			t.Errorf("friendly = %q, want Maps", rows[0].friendly)
		}
	})

	t.Run("bad number discards that row only", func(t *testing.T) {
		sink := &anomalySink{}
		lines := []sectionLine{
			{num: 1, text: "Uid u0a123: 45.2"},
			{num: 2, text: "Uid u0a124: 1.2.3.4"},
			{num: 3, text: "Screen: 120"},
		}

		rows := extractPower(lines, sink)

		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if len(sink.anomalies) != 1 {
			t.Fatalf("expected 1 anomaly, got %d", len(sink.anomalies))
		}
		if sink.anomalies[0].Kind != models.AnomalyRowSkipped || sink.anomalies[0].Line != 2 {
			t.Errorf("unexpected anomaly: %+v", sink.anomalies[0])
		}
	})
}
