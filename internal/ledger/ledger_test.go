// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/meshintel/arxiv-refextract/pkg/types"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sub", "refextract.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordSuccessThenLastRun(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	finished := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := l.RecordSuccess(ctx, "arXiv/2111/03186", "2021arXiv211103186S", "tbase/arXiv/2111/03186.raw", 4, 2*time.Second, finished); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	got, ok, err := l.LastRun(ctx, "arXiv/2111/03186")
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if !ok {
		t.Fatal("expected a recorded run")
	}
	if got.Bibcode != "2021arXiv211103186S" || got.RefCount != 4 {
		t.Fatalf("unexpected outcome: %+v", got)
	}
	if got.Duration != 2*time.Second {
		t.Fatalf("want 2s duration, got %v", got.Duration)
	}
}

func TestRecordFailureCapturesErrorKind(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	itemErr := types.NewItemError(types.TooFewReferences, "arXiv/2111/03187", "only 3 references found", nil)
	if err := l.RecordFailure(ctx, "arXiv/2111/03187", itemErr, time.Second, time.Now()); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	got, ok, err := l.LastRun(ctx, "arXiv/2111/03187")
	if err != nil || !ok {
		t.Fatalf("LastRun: ok=%v err=%v", ok, err)
	}
	if got.ErrorKind != string(types.TooFewReferences) {
		t.Fatalf("want TooFewReferences, got %q", got.ErrorKind)
	}
}

func TestRecordUpsertsOnRerun(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	itemErr := types.NewItemError(types.CompileTimeout, "arXiv/1904/09850", "pdftex timed out", nil)
	if err := l.RecordFailure(ctx, "arXiv/1904/09850", itemErr, 100*time.Second, time.Now()); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := l.RecordSuccess(ctx, "arXiv/1904/09850", "2019arXiv190409850X", "tbase/arXiv/1904/09850.raw", 17, time.Second, time.Now()); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	got, ok, err := l.LastRun(ctx, "arXiv/1904/09850")
	if err != nil || !ok {
		t.Fatalf("LastRun: ok=%v err=%v", ok, err)
	}
	if got.ErrorKind != "" || got.RefCount != 17 {
		t.Fatalf("expected the rerun's success to replace the failure, got %+v", got)
	}
}

func TestStatsAggregatesAcrossRuns(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	if err := l.RecordSuccess(ctx, "a", "bc1", "out/a.raw", 5, time.Second, time.Now()); err != nil {
		t.Fatalf("RecordSuccess a: %v", err)
	}
	if err := l.RecordFailure(ctx, "b", types.NewItemError(types.SourceMissing, "b", "missing", nil), time.Second, time.Now()); err != nil {
		t.Fatalf("RecordFailure b: %v", err)
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestLastRunReportsMissingRow(t *testing.T) {
	l := testLedger(t)
	_, ok, err := l.LastRun(context.Background(), "never/recorded")
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if ok {
		t.Fatal("expected no recorded run for an unseen relpath")
	}
}
