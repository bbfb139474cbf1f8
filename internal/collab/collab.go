// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collab declares the external collaborator interfaces this core
// consumes but does not implement: bibcode lookup, ArXiv path parsing,
// bulk fulltext harvesting, the PDF-only extraction backend, and the
// ArXiv category list. Per spec.md section 1, these are out of scope for
// this repository; callers inject concrete implementations.
package collab

import (
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

// ArxivPathParser resolves a raw batch-input path into a structured
// ArxivItem.
type ArxivPathParser interface {
	Parse(rawPath string) (*types.ArxivItem, error)
}

// BibcodeMatch is one candidate returned by a bibcode lookup.
type BibcodeMatch struct {
	Bibcode string
	Subdate int
}

// BibcodeLookup resolves a partial bibcode (derived from an eprint id)
// into one or more full bibcode/subdate candidates.
type BibcodeLookup interface {
	PartialBibcode(eprintID string) string
	LookupBibcode(partial string) ([]BibcodeMatch, error)
}

// Harvester fetches (or refreshes) the PDF fulltext for an item from
// ArXiv, ahead of a PDF-fallback extraction attempt.
type Harvester interface {
	HarvestPDF(relpath string) error
}

// PDFExtractor is the PDF-only reference-extraction backend used as the
// fallback path when TeX extraction is unavailable or fails.
type PDFExtractor interface {
	ExtractPDFReferences(pdfPath string) ([]types.Reference, error)
}

// CategoryProvider supplies the set of ArXiv category names, used by the
// split-eprint repair in the PDF marker parser to restore hyphens that a
// PDF-to-text converter fused away (e.g. "astroph" -> "astro-ph").
type CategoryProvider interface {
	Categories() []string
}
