// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse recovers marked reference strings from compiled PDF or
// DVI text output.
//
// Implements: spec.md section 4.8 (Text-Output Parsers).
package parse

import (
	"regexp"
	"strings"

	"github.com/meshintel/arxiv-refextract/internal/clean"
	"github.com/meshintel/arxiv-refextract/internal/collab"
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

var pdfRefRegex = regexp.MustCompile(`(?s)<r>(.*?)<\s*/r\s*>`)

// PDF reads text (the full contents of a pdftotext-converted file) and
// returns every marked reference, with split-eprint category repair
// applied using categories.
func PDF(text string, categories collab.CategoryProvider) []types.Reference {
	matches := pdfRefRegex.FindAllStringSubmatch(text, -1)
	refs := make([]types.Reference, 0, len(matches))
	for _, m := range matches {
		ref := postprocessPDFRef(m[1], categories)
		refs = append(refs, types.Reference(ref))
	}
	return refs
}

func postprocessPDFRef(raw string, categories collab.CategoryProvider) string {
	ref := strings.ReplaceAll(raw, "-\n", "")
	ref = strings.Join(strings.Fields(ref), " ")
	ref = strings.TrimSpace(ref)
	if categories != nil {
		ref = repairSplitEprints(ref, categories.Categories())
	}
	return ref
}

// repairSplitEprints restores hyphens in ArXiv category names that a
// PDF-to-text conversion fused away, e.g. "astroph/1234567" ->
// "astro-ph/1234567".
func repairSplitEprints(ref string, categories []string) string {
	for _, cat := range categories {
		if !strings.Contains(cat, "-") {
			continue
		}
		fused := strings.ReplaceAll(cat, "-", "")
		re := regexp.MustCompile(regexp.QuoteMeta(fused) + `(/\d{7})`)
		ref = re.ReplaceAllString(ref, cat+"$1")
	}
	return ref
}

var (
	dviCitationOpen  = "citation_open"
	dviCitationClose = "citation_close"
	dviRefClose      = "ref_close"

	discardedHeadings = map[string]bool{
		"[References]":   true,
		"[REFERENCES]":   true,
		"[Bibliography]": true,
		"[BIBLIOGRAPHY]": true,
	}
)

// DVI runs the line-oriented DVI marker state machine over lines (the
// contents of a dvitype-converted file, split on newlines) and returns
// the cleaned references, using title for the Reference Cleaner's
// title-substring removal step.
func DVI(lines []string, title string) []types.Reference {
	var refs []types.Reference
	var cur strings.Builder
	seenOpen := false

	emit := func() {
		text := cur.String()
		cur.Reset()
		if text == "" {
			return
		}
		refs = append(refs, types.Reference(clean.Clean(text, title)))
	}

	for _, line := range lines {
		if strings.Contains(line, dviCitationOpen) {
			if seenOpen {
				emit()
			}
			seenOpen = true
			continue
		}
		if !seenOpen {
			continue
		}
		if strings.Contains(line, dviRefClose) {
			emit()
			break
		}
		if strings.Contains(line, dviCitationClose) {
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(line), "[") {
			continue
		}
		if discardedHeadings[strings.TrimSpace(line)] {
			continue
		}

		acc := cur.String()
		cur.Reset()
		cur.WriteString(clean.AppendDVIFragment(acc, line, clean.HyphenRepairClassic))
	}

	return refs
}
