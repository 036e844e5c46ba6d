package aggregate

import (
	"fmt"
	"testing"
	"time"

	"github.com/quillside/logdeck/internal/filter"
	"github.com/quillside/logdeck/internal/model"
)

var nextTestID uint64

func rec(source, msg string, sev model.Severity) *model.LogRecord {
	nextTestID++
	return model.NewLogRecord(nextTestID, time.Now(), model.RawEvent{Message: msg, Severity: sev}, source, "")
}

func countSum(a Aggregator) int {
	total := 0
	for _, c := range a.Counts() {
		total += c
	}
	return total
}

func repeatSum(a Aggregator) int {
	total := 0
	for _, r := range a.GetLogRecords() {
		total += r.RepeatCount
	}
	return total
}

func TestPlainAppendsAndCounts(t *testing.T) {
	a := NewPlain(10, nil)
	a.Ingest(rec("App.Foo", "one", model.SeverityInfo))
	a.Ingest(rec("App.Foo", "one", model.SeverityInfo))
	a.Ingest(rec("App.Bar", "two", model.SeverityError))

	if a.Len() != 3 {
		t.Fatalf("Len = %d, want 3 (plain never merges)", a.Len())
	}
	if countSum(a) != a.Len() {
		t.Errorf("counter sum %d != size %d", countSum(a), a.Len())
	}
	if got := a.Counts()[model.SeverityError]; got != 1 {
		t.Errorf("error count = %d, want 1", got)
	}

	got := a.GetLogRecords()
	if got[0].Message != "two" || got[2].Message != "one" {
		t.Error("GetLogRecords should be most-recent-first")
	}
}

func TestPlainEviction(t *testing.T) {
	a := NewPlain(2, nil)
	a.Ingest(rec("App.A", "a", model.SeverityInfo))
	a.Ingest(rec("App.B", "b", model.SeverityWarning))
	a.Ingest(rec("App.C", "c", model.SeverityError))

	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}
	got := a.GetLogRecords()
	if got[0].Message != "c" || got[1].Message != "b" {
		t.Errorf("expected last two records, got %q then %q", got[0].Message, got[1].Message)
	}
	counts := a.Counts()
	if counts[model.SeverityInfo] != 0 || counts[model.SeverityWarning] != 1 || counts[model.SeverityError] != 1 {
		t.Errorf("counters should reflect only surviving records, got %v", counts)
	}
}

func TestCollapseMergesConsecutive(t *testing.T) {
	a := NewCollapse(10, nil)
	a.Ingest(rec("App.Foo", "boom", model.SeverityError))
	a.Ingest(rec("App.Foo", "boom", model.SeverityError))
	a.Ingest(rec("App.Foo", "boom", model.SeverityError))

	if a.Len() != 1 {
		t.Fatalf("Len = %d, want 1", a.Len())
	}
	got := a.GetLogRecords()
	if got[0].RepeatCount != 3 {
		t.Errorf("RepeatCount = %d, want 3", got[0].RepeatCount)
	}
	if repeatSum(a) != 3 || countSum(a) != 3 {
		t.Errorf("repeat sum %d and counter sum %d should both equal ingested events", repeatSum(a), countSum(a))
	}
}

func TestCollapseDoesNotReorder(t *testing.T) {
	a := NewCollapse(10, nil)
	a.Ingest(rec("App.Foo", "A", model.SeverityInfo))
	a.Ingest(rec("App.Foo", "B", model.SeverityInfo))
	a.Ingest(rec("App.Foo", "A", model.SeverityInfo))

	got := a.GetLogRecords()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (intervening B breaks the run)", len(got))
	}
	if got[0].Message != "A" || got[1].Message != "B" || got[2].Message != "A" {
		t.Errorf("order = [%s %s %s], want [A B A]", got[0].Message, got[1].Message, got[2].Message)
	}
	if got[0].RepeatCount != 1 || got[2].RepeatCount != 1 {
		t.Error("neither A may merge across the intervening B")
	}
}

func TestCollapseMergeKeepsNewestTimestamp(t *testing.T) {
	a := NewCollapse(10, nil)
	first := rec("App.Foo", "boom", model.SeverityError)
	a.Ingest(first)
	second := rec("App.Foo", "boom", model.SeverityError)
	second.Timestamp = first.Timestamp.Add(time.Minute)
	a.Ingest(second)

	got := a.GetLogRecords()
	if !got[0].Timestamp.Equal(first.Timestamp.Add(time.Minute)) {
		t.Error("merged record should carry the latest timestamp")
	}
	if got[0].ID != first.ID {
		t.Error("merged record keeps the original ID")
	}
}

func TestSmartReordersMergedEntry(t *testing.T) {
	a := NewSmart(10, nil)
	a.Ingest(rec("App.Foo", "A", model.SeverityInfo))
	a.Ingest(rec("App.Foo", "B", model.SeverityInfo))
	a.Ingest(rec("App.Foo", "A", model.SeverityInfo))

	got := a.GetLogRecords()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Message != "A" || got[0].RepeatCount != 2 {
		t.Errorf("most recent should be A(x2), got %s(x%d)", got[0].Message, got[0].RepeatCount)
	}
	if got[1].Message != "B" {
		t.Errorf("second should be B, got %s", got[1].Message)
	}
}

func TestSmartMergesAcrossDistance(t *testing.T) {
	a := NewSmart(100, nil)
	a.Ingest(rec("App.Noisy", "tick", model.SeverityInfo))
	for i := 0; i < 20; i++ {
		a.Ingest(rec("App.Other", fmt.Sprintf("msg-%d", i), model.SeverityInfo))
	}
	a.Ingest(rec("App.Noisy", "tick", model.SeverityInfo))

	got := a.GetLogRecords()
	if got[0].Source != "App.Noisy" || got[0].RepeatCount != 2 {
		t.Errorf("noisy entry should be merged and promoted, got %s(x%d)", got[0].Source, got[0].RepeatCount)
	}
	if a.Len() != 21 {
		t.Errorf("Len = %d, want 21", a.Len())
	}
	if repeatSum(a) != 22 || countSum(a) != 22 {
		t.Errorf("repeat sum %d / counter sum %d, want 22", repeatSum(a), countSum(a))
	}
}

func TestSmartEvictionDropsIndexEntry(t *testing.T) {
	a := NewSmart(2, nil)
	a.Ingest(rec("App.A", "a", model.SeverityInfo))
	a.Ingest(rec("App.B", "b", model.SeverityInfo))
	a.Ingest(rec("App.C", "c", model.SeverityInfo)) // evicts a

	// A re-ingested "a" must insert fresh, not merge into the evicted node.
	a.Ingest(rec("App.A", "a", model.SeverityInfo)) // evicts b

	got := a.GetLogRecords()
	if got[0].Source != "App.A" || got[0].RepeatCount != 1 {
		t.Errorf("re-ingested record should be fresh, got %s(x%d)", got[0].Source, got[0].RepeatCount)
	}
	if a.Len() != 2 {
		t.Errorf("Len = %d, want 2", a.Len())
	}
}

func TestSmartEvictionDecrementsByRepeatCount(t *testing.T) {
	a := NewSmart(2, nil)
	for i := 0; i < 5; i++ {
		a.Ingest(rec("App.Noisy", "tick", model.SeverityWarning))
	}
	a.Ingest(rec("App.B", "b", model.SeverityInfo))
	a.Ingest(rec("App.C", "c", model.SeverityInfo)) // evicts the x5 entry

	counts := a.Counts()
	if counts[model.SeverityWarning] != 0 {
		t.Errorf("warning count = %d, want 0 after evicting the merged entry", counts[model.SeverityWarning])
	}
	if counts[model.SeverityInfo] != 2 {
		t.Errorf("info count = %d, want 2", counts[model.SeverityInfo])
	}
}

func TestSimilarityMergeIgnoresTrace(t *testing.T) {
	a := NewSmart(10, nil)
	r1 := rec("App.Foo", "boom", model.SeverityError)
	r1.StackTrace = "at App.Foo (foo.go:10)"
	r2 := rec("App.Foo", "boom", model.SeverityError)
	r2.StackTrace = "at App.Foo (foo.go:99)"
	a.Ingest(r1)
	a.Ingest(r2)

	if a.Len() != 1 {
		t.Error("records differing only in stack trace must merge")
	}
}

func TestFilterAdmission(t *testing.T) {
	f := filter.New()
	f.AddSilenceBySource("App.Chatty")

	a := NewPlain(10, f)
	a.Ingest(rec("App.Chatty", "spam", model.SeverityInfo))
	a.Ingest(rec("App.Quiet", "ok", model.SeverityInfo))

	if a.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (silenced source dropped)", a.Len())
	}
	if countSum(a) != 1 {
		t.Error("dropped records must not touch counters")
	}
}

func TestUpdateFilterRetroactive(t *testing.T) {
	f := filter.New()
	for _, kind := range []string{"plain", "collapse", "smart"} {
		var a Aggregator
		switch kind {
		case "plain":
			a = NewPlain(10, f)
		case "collapse":
			a = NewCollapse(10, f)
		case "smart":
			a = NewSmart(10, f)
		}

		a.Ingest(rec("App.Chatty", "spam", model.SeverityInfo))
		a.Ingest(rec("App.Quiet", "ok", model.SeverityWarning))

		f.AddSilenceBySource("App.Chatty")
		a.UpdateFilter()

		if a.Len() != 1 {
			t.Errorf("%s: Len = %d, want 1 after retroactive filter", kind, a.Len())
		}
		if a.Counts()[model.SeverityInfo] != 0 {
			t.Errorf("%s: evicted record must release its counter", kind)
		}

		// Idempotence: a second UpdateFilter with no intervening ingest
		// changes nothing.
		before := a.GetLogRecords()
		a.UpdateFilter()
		after := a.GetLogRecords()
		if len(before) != len(after) {
			t.Errorf("%s: UpdateFilter is not idempotent", kind)
		}
		f.Reset()
	}
}

func TestSmartUpdateFilterDropsIndex(t *testing.T) {
	f := filter.New()
	a := NewSmart(10, f)
	a.Ingest(rec("App.Chatty", "spam", model.SeverityInfo))

	f.AddSilenceBySource("App.Chatty")
	a.UpdateFilter()
	f.Reset()

	a.Ingest(rec("App.Chatty", "spam", model.SeverityInfo))
	got := a.GetLogRecords()
	if len(got) != 1 || got[0].RepeatCount != 1 {
		t.Error("record re-ingested after filter eviction must insert fresh")
	}
}

func TestFlushBufferedLogs(t *testing.T) {
	a := NewPlain(10, nil)
	if a.FlushBufferedLogs() {
		t.Error("fresh aggregator should not be dirty")
	}
	a.Ingest(rec("App.Foo", "x", model.SeverityInfo))
	if !a.FlushBufferedLogs() {
		t.Error("ingest should mark dirty")
	}
	if a.FlushBufferedLogs() {
		t.Error("flush should clear the flag")
	}
	a.ClearAllLogs()
	if !a.FlushBufferedLogs() {
		t.Error("clear counts as a change")
	}
}

func TestClearAllLogs(t *testing.T) {
	a := NewSmart(10, nil)
	a.Ingest(rec("App.Foo", "x", model.SeverityError))
	a.Ingest(rec("App.Foo", "x", model.SeverityError))
	a.ClearAllLogs()

	if a.Len() != 0 || countSum(a) != 0 {
		t.Error("clear should empty records and counters")
	}
	a.Ingest(rec("App.Foo", "x", model.SeverityError))
	if a.Len() != 1 || a.GetLogRecords()[0].RepeatCount != 1 {
		t.Error("post-clear ingest must start from an empty index")
	}
}

func TestSnapshotLoadLogs(t *testing.T) {
	live := NewSmart(10, nil)
	live.Ingest(rec("App.Foo", "A", model.SeverityInfo))
	live.Ingest(rec("App.Foo", "B", model.SeverityWarning))
	live.Ingest(rec("App.Foo", "A", model.SeverityInfo))

	snap := NewSnapshot()
	snap.LoadLogs(live)

	want := live.GetLogRecords()
	got := snap.GetLogRecords()
	if len(got) != len(want) {
		t.Fatalf("snapshot len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].RepeatCount != want[i].RepeatCount {
			t.Errorf("record %d differs: got %+v want %+v", i, got[i], want[i])
		}
	}
	if !snap.FlushBufferedLogs() {
		t.Error("load should mark the snapshot dirty")
	}
	if snap.FlushBufferedLogs() {
		t.Error("dirty must be raised once per load, not once per record")
	}

	// The frozen view must not follow later live ingestion.
	live.Ingest(rec("App.Foo", "C", model.SeverityError))
	if snap.Len() != len(want) {
		t.Error("snapshot changed after live ingest")
	}

	counts := snap.Counts()
	if counts[model.SeverityInfo] != 2 || counts[model.SeverityWarning] != 1 {
		t.Errorf("snapshot counters should mirror represented events, got %v", counts)
	}
}

func TestSnapshotReload(t *testing.T) {
	live := NewPlain(10, nil)
	live.Ingest(rec("App.Foo", "one", model.SeverityInfo))

	snap := NewSnapshot()
	snap.LoadLogs(live)
	live.Ingest(rec("App.Foo", "two", model.SeverityInfo))
	snap.LoadLogs(live)

	if snap.Len() != 2 {
		t.Errorf("reload should replace contents, Len = %d", snap.Len())
	}
}

func TestCaptureHooksAreSafe(t *testing.T) {
	for _, a := range []Aggregator{NewPlain(1, nil), NewCollapse(1, nil), NewSmart(1, nil), NewSnapshot()} {
		a.StartCapture()
		a.StopCapture()
	}
}

func TestDefaultCapacity(t *testing.T) {
	a := NewPlain(0, nil)
	for i := 0; i < DefaultCapacity+5; i++ {
		a.Ingest(rec("App.Foo", fmt.Sprintf("m%d", i), model.SeverityInfo))
	}
	if a.Len() != DefaultCapacity {
		t.Errorf("Len = %d, want default capacity %d", a.Len(), DefaultCapacity)
	}
}
