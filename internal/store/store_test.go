package store

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// saveReport records a minimal completed cycle so offset queries work.
func saveReport(t *testing.T, db *DB, cycleID int64) {
	t.Helper()
	if err := db.SaveReport(cycleID, cycleID, cycleID+1, false, []byte(`{}`)); err != nil {
		t.Fatalf("SaveReport %d: %v", cycleID, err)
	}
}

func TestMigrations(t *testing.T) {
	db := testDB(t)
	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("schema version = %d, want %d", v, len(migrations))
	}
}

func TestAppendOutcomeIdempotent(t *testing.T) {
	db := testDB(t)

	if err := db.AppendOutcome(1, "r", "a", "b"); err != nil {
		t.Fatalf("AppendOutcome: %v", err)
	}
	// Same cycle, same triple: must not create a second row.
	if err := db.AppendOutcome(1, "r", "a", "b"); err != nil {
		t.Fatalf("AppendOutcome repeat: %v", err)
	}

	outcomes, err := db.ListOutcomes(10)
	if err != nil {
		t.Fatalf("ListOutcomes: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(outcomes))
	}
	if outcomes[0].Status != StatusApplied {
		t.Errorf("status = %q, want applied", outcomes[0].Status)
	}
}

func TestMarkOutcome(t *testing.T) {
	db := testDB(t)
	db.AppendOutcome(1, "r", "a", "b")

	marked, err := db.MarkOutcome("r", "a", "b", StatusReversed)
	if err != nil {
		t.Fatalf("MarkOutcome: %v", err)
	}
	if !marked {
		t.Fatal("marked = false")
	}

	outcomes, _ := db.ListOutcomes(10)
	if outcomes[0].Status != StatusReversed {
		t.Errorf("status = %q, want reversed", outcomes[0].Status)
	}
	if outcomes[0].ResolvedAt == nil {
		t.Error("resolved_at not set")
	}

	// Already resolved: nothing left to mark.
	marked, err = db.MarkOutcome("r", "a", "b", StatusRetained)
	if err != nil {
		t.Fatalf("MarkOutcome again: %v", err)
	}
	if marked {
		t.Error("marked a resolved outcome")
	}
}

func TestMarkOutcomeRejectsBadStatus(t *testing.T) {
	db := testDB(t)
	if _, err := db.MarkOutcome("r", "a", "b", "applied"); err == nil {
		t.Error("accepted applied as a mark status")
	}
}

func TestSweepRetained(t *testing.T) {
	db := testDB(t)
	db.AppendOutcome(1, "r", "a", "b")
	db.AppendOutcome(2, "r", "c", "d")

	// Only two completed cycles: nothing old enough yet.
	saveReport(t, db, 1)
	saveReport(t, db, 2)
	n, err := db.SweepRetained(3)
	if err != nil {
		t.Fatalf("SweepRetained: %v", err)
	}
	if n != 0 {
		t.Fatalf("swept %d, want 0", n)
	}

	// Cycles 3 and 4 complete: cycle 1's outcome has now survived 3
	// subsequent cycles and becomes retained; cycle 2's has not.
	saveReport(t, db, 3)
	saveReport(t, db, 4)
	n, err = db.SweepRetained(3)
	if err != nil {
		t.Fatalf("SweepRetained: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}

	outcomes, _ := db.ListOutcomes(10)
	byCycle := map[int64]string{}
	for _, o := range outcomes {
		byCycle[o.CycleID] = o.Status
	}
	if byCycle[1] != StatusRetained {
		t.Errorf("cycle 1 status = %q, want retained", byCycle[1])
	}
	if byCycle[2] != StatusApplied {
		t.Errorf("cycle 2 status = %q, want applied", byCycle[2])
	}
}

func TestSweepSkipsReversed(t *testing.T) {
	db := testDB(t)
	db.AppendOutcome(1, "r", "a", "b")
	db.MarkOutcome("r", "a", "b", StatusReversed)
	for i := int64(1); i <= 5; i++ {
		saveReport(t, db, i)
	}

	if n, _ := db.SweepRetained(3); n != 0 {
		t.Errorf("swept %d reversed outcomes, want 0", n)
	}
}

func TestSweepIgnoresInterruptedCycles(t *testing.T) {
	db := testDB(t)
	db.AppendOutcome(1, "r", "a", "b")
	saveReport(t, db, 1)
	saveReport(t, db, 2)
	saveReport(t, db, 3)
	if err := db.SaveReport(4, 4, 5, true, []byte(`{}`)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	// Cycle 1's outcome has survived only two completed cycles; the
	// interrupted cycle 4 must not tip the window.
	if n, err := db.SweepRetained(3); err != nil || n != 0 {
		t.Fatalf("swept %d (%v), want 0", n, err)
	}

	saveReport(t, db, 5)
	if n, err := db.SweepRetained(3); err != nil || n != 1 {
		t.Fatalf("swept %d (%v), want 1", n, err)
	}
}

func TestRuleStatsWindow(t *testing.T) {
	db := testDB(t)
	db.AppendOutcome(1, "r", "a", "b")
	db.AppendOutcome(2, "r", "c", "d")
	db.AppendOutcome(2, "other", "e", "f")
	db.MarkOutcome("r", "a", "b", StatusRetained)
	db.MarkOutcome("r", "c", "d", StatusReversed)
	db.RecordFires(1, map[string]int{"r": 3})
	db.RecordFires(2, map[string]int{"r": 2, "other": 1})
	saveReport(t, db, 1)
	saveReport(t, db, 2)

	stats, err := db.RuleStatsWindow(10)
	if err != nil {
		t.Fatalf("RuleStatsWindow: %v", err)
	}

	want := map[string]RuleStats{
		"r":     {Fired: 5, Retained: 1, Reversed: 1},
		"other": {Fired: 1, Applied: 1},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch:\n%s", diff)
	}
}

func TestRuleStatsWindowEmpty(t *testing.T) {
	db := testDB(t)
	stats, err := db.RuleStatsWindow(10)
	if err != nil {
		t.Fatalf("RuleStatsWindow: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("stats = %v, want empty", stats)
	}
}

func TestReportsRoundTrip(t *testing.T) {
	db := testDB(t)

	report := map[string]any{"cycle_id": "42", "matches": float64(7)}
	data, _ := json.Marshal(report)
	if err := db.SaveReport(42, 100, 200, false, data); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	row, err := db.LatestReport()
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if row == nil {
		t.Fatal("no report")
	}
	if row.Interrupted {
		t.Error("interrupted = true for a completed cycle")
	}

	var got map[string]any
	if err := json.Unmarshal(row.Report, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(report, got); diff != "" {
		t.Errorf("report mismatch:\n%s", diff)
	}

	list, err := db.ListReports(0)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("reports = %d, want 1", len(list))
	}

	n, err := db.CycleCount()
	if err != nil || n != 1 {
		t.Errorf("CycleCount = %d, %v", n, err)
	}
}

func TestLatestReportEmpty(t *testing.T) {
	db := testDB(t)
	row, err := db.LatestReport()
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if row != nil {
		t.Errorf("row = %v, want nil", row)
	}
}
