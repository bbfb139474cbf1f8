// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package subprocrunner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meshintel/arxiv-refextract/pkg/types"
)

func newTestRunner() *Runner {
	cfg := types.DefaultSubprocessConfig()
	cfg.SignalEscalationDelay = 20 * time.Millisecond
	return New(cfg)
}

func TestRunSuccess(t *testing.T) {
	r := newTestRunner()
	code, err := r.Run(time.Second, []string{"true"}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("want exit code 0, got %d", code)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := newTestRunner()
	code, err := r.Run(time.Second, []string{"false"}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 1 {
		t.Fatalf("want exit code 1, got %d", code)
	}
}

func TestRunTimeoutKillsGroup(t *testing.T) {
	r := newTestRunner()
	start := time.Now()
	code, err := r.Run(50*time.Millisecond, []string{"sleep", "30"}, Options{})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != TimeoutExitCode {
		t.Fatalf("want TimeoutExitCode, got %d", code)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("kill escalation took too long: %v", elapsed)
	}
}

func TestRunSpawnError(t *testing.T) {
	r := newTestRunner()
	_, err := r.Run(time.Second, []string{"definitely-not-a-real-binary-xyz"}, Options{})
	if err == nil {
		t.Fatal("expected a spawn error")
	}
	var spawnErr *SpawnError
	if !isSpawnError(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %T: %v", err, err)
	}
}

func isSpawnError(err error, target **SpawnError) bool {
	se, ok := err.(*SpawnError)
	if ok {
		*target = se
	}
	return ok
}

func TestRunEmptyArgv(t *testing.T) {
	r := newTestRunner()
	if _, err := r.Run(time.Second, nil, Options{}); err == nil {
		t.Fatal("expected an error for empty argv")
	}
}

func TestRunResolvesBinaryFromScopedEnvPath(t *testing.T) {
	bindir := t.TempDir()
	script := filepath.Join(bindir, "fake-tool")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 7\n"), 0o755); err != nil {
		t.Fatalf("writing fake tool: %v", err)
	}

	r := newTestRunner()
	code, err := r.Run(time.Second, []string{"fake-tool"}, Options{Env: []string{"PATH=" + bindir}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 7 {
		t.Fatalf("want exit code 7 from scoped-PATH binary, got %d", code)
	}
}
