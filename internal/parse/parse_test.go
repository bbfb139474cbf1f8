// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"testing"

	"github.com/meshintel/arxiv-refextract/pkg/types"
)

type fakeCategories []string

func (f fakeCategories) Categories() []string { return []string(f) }

func TestPDFExtractsMarkedReferences(t *testing.T) {
	text := "junk\n$<$r$>$Smith, J. 2001, ApJ, 1$<$/r$>$\nmore junk\n<r>Jones, K. 2002, Nature</r>\n"
	refs := PDF(text, nil)
	if len(refs) != 1 {
		t.Fatalf("want 1 reference (the literal <r> marker), got %d: %v", len(refs), refs)
	}
	if refs[0] != types.Reference("Jones, K. 2002, Nature") {
		t.Fatalf("got %q", refs[0])
	}
}

func TestPDFDropsLineEndingHyphens(t *testing.T) {
	text := "<r>Smith, J. 2001, Astro-\nphysical Journal</r>"
	refs := PDF(text, nil)
	if len(refs) != 1 {
		t.Fatalf("want 1 reference, got %d", len(refs))
	}
	if refs[0] != types.Reference("Smith, J. 2001, Astrophysical Journal") {
		t.Fatalf("got %q", refs[0])
	}
}

func TestPDFRepairsSplitEprintCategory(t *testing.T) {
	text := "<r>see astroph/1234567 for details</r>"
	refs := PDF(text, fakeCategories{"astro-ph", "hep-th"})
	if len(refs) != 1 {
		t.Fatalf("want 1 reference, got %d", len(refs))
	}
	if refs[0] != types.Reference("see astro-ph/1234567 for details") {
		t.Fatalf("got %q", refs[0])
	}
}

func TestDVIStateMachine(t *testing.T) {
	lines := []string{
		"preamble noise",
		"citation_open",
		"[Smith, J. 2001, ApJ, 1",
		"citation_open",
		"[Jones, K. 2002, Nature",
		"ref_close",
	}
	refs := DVI(lines, "")
	if len(refs) != 2 {
		t.Fatalf("want 2 references, got %d: %v", len(refs), refs)
	}
	if refs[0] != types.Reference("[Smith, J. 2001, ApJ, 1") {
		t.Fatalf("got %q", refs[0])
	}
}

func TestDVIDiscardsHeadingLines(t *testing.T) {
	lines := []string{
		"citation_open",
		"[References]",
		"[Smith, J. 2001]",
		"ref_close",
	}
	refs := DVI(lines, "")
	if len(refs) != 1 {
		t.Fatalf("want 1 reference, got %d: %v", len(refs), refs)
	}
}
