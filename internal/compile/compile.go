// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package compile drives one candidate main file through the TeX
// toolchain and converts its output to plain text for reference
// extraction.
//
// Implements: spec.md section 4.7 (Compile-and-Extract).
package compile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/meshintel/arxiv-refextract/internal/subprocrunner"
	"github.com/meshintel/arxiv-refextract/internal/toolchain"
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

var outputWrittenRegex = regexp.MustCompile(`(?i)Output written on (.*?) \(`)

// Result is the outcome of successfully compiling one candidate.
type Result struct {
	// TextPath is the plain-text file produced from the compiled output,
	// ready for the Text-Output Parsers.
	TextPath string
}

// Runner drives the compile step for one candidate.
type Runner struct {
	subproc *subprocrunner.Runner
	timeout time.Duration
}

// New creates a compile Runner using subproc for every invocation and
// timeout to bound the TeX compile step.
func New(subproc *subprocrunner.Runner, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 100 * time.Second
	}
	return &Runner{subproc: subproc, timeout: timeout}
}

// texCommand selects the compiler invocation for one candidate, per
// spec.md section 4.7 step 2.
func texCommand(cand types.MainCandidate, marker types.MarkerStyle) []string {
	switch {
	case marker == types.MarkerPdf && cand.Format == types.FormatPlainTex:
		return []string{"pdftex", cand.File}
	case marker == types.MarkerPdf && cand.Format == types.FormatLatex:
		return []string{"pdflatex", "-interaction=nonstopmode", cand.File}
	case cand.Format == types.FormatPlainTex:
		return []string{"tex", cand.File}
	default:
		return []string{"latex", "-interaction=nonstopmode", cand.File}
	}
}

// Compile runs cand's compiler in dir under tc's environment, then
// converts its output to text under the same environment. It returns the
// discovered candidate output's text path.
func (r *Runner) Compile(dir string, cand types.MainCandidate, marker types.MarkerStyle, tc types.Toolchain) (*Result, error) {
	argv := texCommand(cand, marker)
	env := toolchain.Environ(os.Environ(), tc)

	// Exit status is ignored: TeX regularly returns non-zero on warnings
	// that don't prevent useful output.
	if _, err := r.subproc.Run(r.timeout, argv, subprocrunner.Options{Dir: dir, Env: env}); err != nil {
		return nil, fmt.Errorf("running %v: %w", argv, err)
	}

	outPath := r.discoverOutput(dir, cand, marker)

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("compiled output %s not found: %w", outPath, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("compiled output %s is empty", outPath)
	}

	textPath, err := r.convertToText(dir, outPath, marker, env)
	if err != nil {
		return nil, err
	}
	return &Result{TextPath: textPath}, nil
}

// discoverOutput parses the TeX log for "Output written on FILE" to find
// the real output path; falling back to <basename>.<ext> when the log is
// missing or silent.
func (r *Runner) discoverOutput(dir string, cand types.MainCandidate, marker types.MarkerStyle) string {
	ext := "dvi"
	if marker == types.MarkerPdf {
		ext = "pdf"
	}
	fallback := filepath.Join(dir, cand.Basename+"."+ext)

	logPath := filepath.Join(dir, cand.Basename+".log")
	f, err := os.Open(logPath)
	if err != nil {
		return fallback
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if m := outputWrittenRegex.FindStringSubmatch(scanner.Text()); m != nil {
			candidate := strings.TrimSpace(m[1])
			if !filepath.IsAbs(candidate) {
				candidate = filepath.Join(dir, candidate)
			}
			return candidate
		}
	}
	return fallback
}

// convertToText runs dvitype or pdftotext on outPath, matching marker.
func (r *Runner) convertToText(dir, outPath string, marker types.MarkerStyle, env []string) (string, error) {
	textPath := outPath + ".txt"

	var argv []string
	if marker == types.MarkerDvi {
		argv = []string{"dvitype", outPath}
		return textPath, r.runIntoFile(dir, argv, textPath, env)
	}

	argv = []string{"pdftotext", "-raw", "-enc", "ASCII7", outPath, textPath}
	if _, err := r.subproc.Run(r.timeout, argv, subprocrunner.Options{Dir: dir, Env: env}); err != nil {
		return "", fmt.Errorf("converting %s to text: %w", outPath, err)
	}
	return textPath, nil
}

// runIntoFile runs argv with stdout captured to destPath, used for
// dvitype which writes its rendering to stdout rather than a named
// output file.
func (r *Runner) runIntoFile(dir string, argv []string, destPath string, env []string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := r.subproc.Run(r.timeout, argv, subprocrunner.Options{Dir: dir, Env: env, Stdout: out}); err != nil {
		return fmt.Errorf("running %v: %w", argv, err)
	}
	return nil
}
