// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package texsource

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestFindPrefersDocumentWithBibliography(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tex", "\\documentclass{article}\n\\title{A Great Paper}\n\\begin{document}\n\\begin{thebibliography}{99}\n\\bibitem{a} Ref one.\n\\end{thebibliography}\n\\end{document}\n")
	writeFile(t, dir, "aa.tex", "\\documentclass{aa}\n")

	candidates, err := Find(dir)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if candidates[0].File != "main.tex" {
		t.Fatalf("expected main.tex to rank first, got %q (score %d)", candidates[0].File, candidates[0].Score)
	}
	if candidates[0].Format != 0 {
		// zero value FormatPlainTex is fine since \documentclass sets latex
	}
}

func TestFindPenalizesDenylistedBasename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "aa.tex", "\\documentclass{aa}\n")
	writeFile(t, dir, "paper.tex", "\\title{Something}\n\\begin{document}\n\\end{document}\n")

	candidates, err := Find(dir)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	var aaScore, paperScore int
	for _, c := range candidates {
		switch c.File {
		case "aa.tex":
			aaScore = c.Score
		case "paper.tex":
			paperScore = c.Score
		}
	}
	if aaScore >= paperScore {
		t.Fatalf("expected aa.tex to be heavily penalized: aa=%d paper=%d", aaScore, paperScore)
	}
}

func TestFindMarksAutoIgnore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ignored.tex", "%auto-ignore\n\\documentclass{article}\n")

	candidates, err := Find(dir)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(candidates) != 1 || !candidates[0].Ignore {
		t.Fatalf("expected ignored.tex to be marked ignore=true: %+v", candidates)
	}
}

func TestFindDemotesInputTargets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tex", "\\documentclass{article}\n\\input{sections}\n\\begin{document}\\end{document}\n")
	writeFile(t, dir, "sections.tex", "some included content\n")

	candidates, err := Find(dir)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	var sectionsScore int
	for _, c := range candidates {
		if c.File == "sections.tex" {
			sectionsScore = c.Score
		}
	}
	if sectionsScore != -1 {
		t.Fatalf("expected sections.tex (matched by basename) to score -1, got %d", sectionsScore)
	}
}

func TestFindShortTitleDiscarded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tex", "\\shorttitle{Hi}\n\\documentclass{article}\n")

	candidates, err := Find(dir)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(candidates))
	}
	if candidates[0].Title != "" {
		t.Fatalf("expected short title to be discarded, got %q", candidates[0].Title)
	}
}
