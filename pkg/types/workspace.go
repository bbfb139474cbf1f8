// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Workspace is a scoped, per-item scratch directory. At most one exists
// per item at a time; it is destroyed on every exit path unless
// KeepOnExit is set (debug mode).
type Workspace struct {
	// RootDir is the absolute path to the scratch directory.
	RootDir string

	// KeepOnExit retains the directory instead of removing it, for
	// debug>1 runs.
	KeepOnExit bool
}

// MarkerStyle selects which family of extraction-marker tokens the
// Reference Tagger injects, driven by whether the downstream text
// conversion reads PDF text or DVI-type output.
type MarkerStyle int

const (
	MarkerPdf MarkerStyle = iota
	MarkerDvi
)

// TexFormat is the document format a candidate main file was written in.
type TexFormat int

const (
	FormatPlainTex TexFormat = iota
	FormatLatex
)

// MainCandidate is one file collected during main-file discovery, scored
// by how likely it is to be the paper's main TeX source.
type MainCandidate struct {
	// File is the path to the candidate, relative to the workspace root.
	File string

	// Basename is File without its extension, used to correlate the
	// compiled output (e.g. "main.tex" -> "main").
	Basename string

	// Score is the confidence heuristic; higher sorts first.
	Score int

	// BibitemMacro is the TeX command used to declare bibliography items
	// in this file, possibly a custom macro discovered via \newcommand or
	// \def.
	BibitemMacro string

	// Title is a best-effort guess at the document title, captured from
	// \shorttitle{...}.
	Title string

	// Format is the TeX flavor inferred for this file.
	Format TexFormat

	// Ignore marks a file that a "%auto-ignore" marker asked us to skip.
	Ignore bool
}

// Toolchain names the environment to apply for one compile invocation: a
// directory to prepend to PATH and an optional TEXMFCNF override.
type Toolchain struct {
	// PathPrepend is the directory containing the era-appropriate TeX
	// binaries.
	PathPrepend string

	// TexmfCnf is the TEXMFCNF directory to set, or empty to leave the
	// variable unset.
	TexmfCnf string
}
