// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolchain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSelectCutoverTable(t *testing.T) {
	s := New("/tex")

	cases := []struct {
		subdate  int
		wantTree string
		wantCnf  string
	}{
		{20200101, "TL2016", ""},
		{20170209, "TL2016", ""},
		{20170208, "TL2011", ""},
		{20111206, "TL2011", ""},
		{20091231, "TL2009", ""},
		{20061102, "teTeX3", "teTeX3/web2c"},
		{20040101, "teTeX2", "texmf-2004/web2c"},
		{20030101, "teTeX2", "texmf-2003/web2c"},
		{20020901, "teTeX2", "texmf-2002/web2c"},
		{19990101, "teTeX2", "texmf/web2c"},
	}

	for _, tc := range cases {
		got := s.Select(tc.subdate)
		wantPath := filepath.Join("/tex", tc.wantTree, "bin")
		if got.PathPrepend != wantPath {
			t.Errorf("subdate %d: PathPrepend = %q, want %q", tc.subdate, got.PathPrepend, wantPath)
		}
		wantCnf := ""
		if tc.wantCnf != "" {
			wantCnf = filepath.Join("/tex", tc.wantCnf)
		}
		if got.TexmfCnf != wantCnf {
			t.Errorf("subdate %d: TexmfCnf = %q, want %q", tc.subdate, got.TexmfCnf, wantCnf)
		}
	}
}

func TestLoadOverrideAddsNewEdge(t *testing.T) {
	dir := t.TempDir()
	overridePath := filepath.Join(dir, "override.yaml")
	contents := "- since: 20990101\n  tree: TLFuture\n  cnf: \"\"\n"
	if err := os.WriteFile(overridePath, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing override file: %v", err)
	}

	s := New("/tex")
	if err := s.LoadOverride(overridePath); err != nil {
		t.Fatalf("LoadOverride: %v", err)
	}

	got := s.Select(20990101)
	if !strings.Contains(got.PathPrepend, "TLFuture") {
		t.Fatalf("expected overridden tree TLFuture, got %q", got.PathPrepend)
	}

	// Pre-existing edges below the override still resolve normally.
	got2 := s.Select(20170209)
	if !strings.Contains(got2.PathPrepend, "TL2016") {
		t.Fatalf("expected built-in edge TL2016 to survive override, got %q", got2.PathPrepend)
	}
}

func TestEnvironPrependsPathAndSetsTexmfCnf(t *testing.T) {
	s := New("/tex")
	tc := s.Select(20061102) // teTeX3, has a TEXMFCNF value

	env := Environ([]string{"PATH=/usr/bin", "HOME=/root"}, tc)

	var gotPath, gotCnf string
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			gotPath = kv
		}
		if strings.HasPrefix(kv, "TEXMFCNF=") {
			gotCnf = kv
		}
	}
	if !strings.HasPrefix(gotPath, "PATH="+tc.PathPrepend) {
		t.Fatalf("PATH not prepended: %q", gotPath)
	}
	if !strings.HasSuffix(gotPath, "/usr/bin") {
		t.Fatalf("original PATH not preserved: %q", gotPath)
	}
	if gotCnf != "TEXMFCNF="+tc.TexmfCnf {
		t.Fatalf("TEXMFCNF not set: %q", gotCnf)
	}
}

func TestEnvironLeavesTexmfCnfUnsetWhenToolchainHasNone(t *testing.T) {
	s := New("/tex")
	tc := s.Select(20200101) // TL2016, unset TEXMFCNF

	env := Environ([]string{"PATH=/usr/bin"}, tc)
	for _, kv := range env {
		if strings.HasPrefix(kv, "TEXMFCNF=") {
			t.Fatalf("expected no TEXMFCNF entry, got %q", kv)
		}
	}
}
