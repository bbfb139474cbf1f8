// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator drives one job end to end: locating its source,
// resolving its bibcode, dispatching to the TeX or PDF extraction path,
// applying accept/reject rules, and emitting the output file.
//
// Implements: spec.md section 4.10 (Per-Item Orchestrator).
package orchestrator

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/meshintel/arxiv-refextract/internal/archive"
	"github.com/meshintel/arxiv-refextract/internal/clean"
	"github.com/meshintel/arxiv-refextract/internal/collab"
	"github.com/meshintel/arxiv-refextract/internal/compile"
	"github.com/meshintel/arxiv-refextract/internal/parse"
	"github.com/meshintel/arxiv-refextract/internal/subprocrunner"
	"github.com/meshintel/arxiv-refextract/internal/tagger"
	"github.com/meshintel/arxiv-refextract/internal/texsource"
	"github.com/meshintel/arxiv-refextract/internal/toolchain"
	"github.com/meshintel/arxiv-refextract/internal/workspace"
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

// Collaborators groups the externally-injected pieces this package
// consumes but does not implement.
type Collaborators struct {
	PathParser    collab.ArxivPathParser
	BibcodeLookup collab.BibcodeLookup
	Harvester     collab.Harvester
	PDFExtractor  collab.PDFExtractor
	Categories    collab.CategoryProvider
}

// Orchestrator processes one job at a time, strictly sequentially, per
// spec.md section 5's cooperative single-threaded scheduling model.
type Orchestrator struct {
	Config types.PipelineConfig
	Collab Collaborators

	Workspace  *workspace.Manager
	Unpacker   *archive.Unpacker
	Toolchains *toolchain.Selector
	Compiler   *compile.Runner
	Subproc    *subprocrunner.Runner

	// Stderr receives per-item diagnostic lines, prefixed with the item id.
	Stderr io.Writer
}

// Outcome is what Process reports back to the caller for one job.
type Outcome struct {
	// OutPath is the output file's path, empty when the item was skipped,
	// rejected, or failed. With SkipRefs set it names the path that would
	// have been written; no file is written in that case.
	OutPath string
	// Skipped is true when the output was already fresh and force=false.
	Skipped bool
	// RefCount is the number of references extracted for OutPath, valid
	// whenever OutPath is non-empty.
	RefCount int
}

// Process runs the full per-item state machine for job. A non-nil
// *types.ItemError is always non-fatal except when its Kind is
// InternalInvariantViolated.
func (o *Orchestrator) Process(job types.Job) (Outcome, *types.ItemError) {
	item, err := o.resolveItem(job)
	if err != nil {
		return Outcome{}, err
	}

	srcPath, err := o.locateSource(item)
	if err != nil {
		return Outcome{}, err
	}

	if err := o.resolveBibcode(&job, item); err != nil {
		return Outcome{}, err
	}

	outPath := filepath.Join(o.Config.TargetRefsBase, item.CanonicalRelpath+".raw")
	if !o.Config.Force {
		if fresh, ferr := isFresh(srcPath, outPath); ferr == nil && fresh {
			return Outcome{Skipped: true}, nil
		}
	}

	refs, err := o.extract(item, srcPath, job.Subdate)
	if err != nil {
		return Outcome{}, err
	}

	outcome := types.ClassifyRefs(refs)
	if outcome.Kind != types.OutcomeOk {
		o.warnf(item, "%s", outcomeWarning(outcome))
		return Outcome{}, nil
	}

	if o.Config.SkipRefs {
		return Outcome{OutPath: outPath, RefCount: len(refs)}, nil
	}

	if err := emit(outPath, job.Bibcode, refs); err != nil {
		return Outcome{}, types.NewItemError(types.OutputIOError, item.EprintID, "writing output file", err)
	}

	return Outcome{OutPath: outPath, RefCount: len(refs)}, nil
}

func (o *Orchestrator) resolveItem(job types.Job) (*types.ArxivItem, *types.ItemError) {
	if job.Item.Resolved != nil {
		return job.Item.Resolved, nil
	}
	item, err := o.Collab.PathParser.Parse(job.Item.RawPath)
	if err != nil {
		return nil, types.NewItemError(types.InputMalformed, job.Item.RawPath, "cannot parse eprint", err)
	}
	return item, nil
}

func (o *Orchestrator) locateSource(item *types.ArxivItem) (string, *types.ItemError) {
	if item.RawPath != "" {
		if _, err := os.Stat(item.RawPath); err == nil {
			return item.RawPath, nil
		}
	}
	candidate := filepath.Join(o.Config.FulltextBase, item.CanonicalRelpath+"."+item.Suffix)
	if _, err := os.Stat(candidate); err != nil {
		return "", types.NewItemError(types.SourceMissing, item.EprintID, "source file not found: "+candidate, err)
	}
	return candidate, nil
}

func (o *Orchestrator) resolveBibcode(job *types.Job, item *types.ArxivItem) *types.ItemError {
	if job.Bibcode != "" {
		return nil
	}
	if o.Collab.BibcodeLookup == nil {
		return types.NewItemError(types.BibcodeUnresolved, item.EprintID, "no bibcode supplied and no lookup backend configured", nil)
	}
	partial := o.Collab.BibcodeLookup.PartialBibcode(item.EprintID)
	matches, err := o.Collab.BibcodeLookup.LookupBibcode(partial)
	if err != nil || len(matches) == 0 {
		return types.NewItemError(types.BibcodeUnresolved, item.EprintID, "no bibcode match for "+partial, err)
	}
	job.Bibcode = matches[0].Bibcode
	if !job.HasSubdate() {
		job.Subdate = matches[0].Subdate
	}
	return nil
}

func isFresh(srcPath, outPath string) (bool, error) {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return false, err
	}
	outInfo, err := os.Stat(outPath)
	if err != nil {
		return false, nil
	}
	return outInfo.ModTime().After(srcInfo.ModTime()), nil
}

// extract dispatches by source format, falling from TeX to PDF when
// permitted.
func (o *Orchestrator) extract(item *types.ArxivItem, srcPath string, subdate int) ([]types.Reference, *types.ItemError) {
	switch types.ClassifyFormat(item.Suffix) {
	case types.FormatTex:
		refs, texErr := o.processTex(item, srcPath, subdate)
		if texErr == nil {
			return refs, nil
		}
		if !o.Config.TryPDF || texErr.Fatal() {
			return nil, texErr
		}
		o.warnf(item, "TeX extraction failed (%s), falling back to PDF", texErr.Kind)
		return o.processPDF(item)
	case types.FormatPdf:
		return o.processPDF(item)
	default:
		return nil, types.NewItemError(types.UnknownFormat, item.EprintID, "unrecognized source suffix "+item.Suffix, nil)
	}
}

// processPDF runs the PDF path. Unless NoHarvest is set, it first asks the
// Harvester (when one is injected) to fetch the item's PDF, whether or not
// a PDF is already present under FulltextBase; it does not check the
// existing file's freshness first. It then sanity-checks the PDF and hands
// it to the PDFExtractor.
func (o *Orchestrator) processPDF(item *types.ArxivItem) ([]types.Reference, *types.ItemError) {
	if !o.Config.NoHarvest && o.Collab.Harvester != nil {
		if err := o.Collab.Harvester.HarvestPDF(item.CanonicalRelpath); err != nil {
			o.warnf(item, "harvester failed: %v", err)
		}
	}

	pdfPath := filepath.Join(o.Config.FulltextBase, item.CanonicalRelpath+".pdf")
	if err := sanityCheckPDF(pdfPath); err != nil {
		return nil, types.NewItemError(types.TextConversionFailed, item.EprintID, "PDF sanity check failed", err)
	}

	if o.Collab.PDFExtractor == nil {
		return nil, types.NewItemError(types.NoReferencesFound, item.EprintID, "no PDF extraction backend configured", nil)
	}
	refs, err := o.Collab.PDFExtractor.ExtractPDFReferences(pdfPath)
	if err != nil {
		return nil, types.NewItemError(types.NoReferencesFound, item.EprintID, "PDF extraction backend failed", err)
	}
	return refs, nil
}

// sanityCheckPDF opens pdfPath and confirms it has at least one page
// before handing it to the external extraction backend, avoiding a
// wasted round trip on a truncated or corrupt harvest.
func sanityCheckPDF(pdfPath string) error {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if r.NumPage() < 1 {
		return fmt.Errorf("%s has no pages", pdfPath)
	}
	return nil
}

// processTex runs the full TeX pipeline: unpack, main-file scoring, tag,
// compile, convert, and parse -- trying PDF-marker candidates before
// DVI-marker ones, and retrying the PDF-marker pass once after a
// PostScript-to-PDF graphics rewrite (spec.md section 5: "the PS->PDF
// retry strictly precedes giving up on TeX").
func (o *Orchestrator) processTex(item *types.ArxivItem, srcPath string, subdate int) ([]types.Reference, *types.ItemError) {
	ws, err := o.Workspace.Acquire(o.Config.Workspace.Debug)
	if err != nil {
		return nil, types.NewItemError(types.InternalInvariantViolated, item.EprintID, "acquiring workspace", err)
	}
	defer o.Workspace.Release(ws)

	if err := o.Unpacker.Unpack(ws, srcPath); err != nil {
		return nil, types.NewItemError(types.UnpackFailed, item.EprintID, "unpacking archive", err)
	}

	tc := o.Toolchains.Select(subdate)

	candidates, err := texsource.Find(ws.RootDir)
	if err != nil {
		return nil, types.NewItemError(types.NoMainFile, item.EprintID, "scanning candidate sources", err)
	}
	if len(candidates) == 0 {
		return nil, types.NewItemError(types.NoMainFile, item.EprintID, "no candidate TeX sources found", nil)
	}

	// Each pass tags candidate files in place, so a later pass must start
	// from the pristine unpacked sources rather than a tree a prior pass
	// already wrapped in extraction markers.
	snap, err := workspace.Snapshot(ws.RootDir)
	if err != nil {
		return nil, types.NewItemError(types.InternalInvariantViolated, item.EprintID, "snapshotting unpacked sources", err)
	}

	if refs := o.tryCandidates(ws, candidates, tc, types.MarkerPdf, false); refs != nil {
		return refs, nil
	}

	if o.Config.Tagger.ConvertPS {
		if err := workspace.RestoreSnapshot(ws.RootDir, snap); err != nil {
			return nil, types.NewItemError(types.InternalInvariantViolated, item.EprintID, "restoring sources before PS retry", err)
		}
		if refs := o.tryCandidates(ws, candidates, tc, types.MarkerPdf, true); refs != nil {
			return refs, nil
		}
	}

	if err := workspace.RestoreSnapshot(ws.RootDir, snap); err != nil {
		return nil, types.NewItemError(types.InternalInvariantViolated, item.EprintID, "restoring sources before DVI retry", err)
	}
	if refs := o.tryCandidates(ws, candidates, tc, types.MarkerDvi, false); refs != nil {
		return refs, nil
	}

	return nil, types.NewItemError(types.NoReferencesFound, item.EprintID, "no candidate produced usable references", nil)
}

func (o *Orchestrator) tryCandidates(ws *types.Workspace, candidates []types.MainCandidate, tc types.Toolchain, marker types.MarkerStyle, convertPS bool) []types.Reference {
	for _, cand := range candidates {
		if cand.Ignore {
			continue
		}

		absPath := filepath.Join(ws.RootDir, cand.File)
		if _, err := tagger.Tag(absPath, cand.BibitemMacro, marker, convertPS); err != nil {
			continue
		}
		if convertPS {
			epsTimeout := o.Config.Subprocess.EpstopdfTimeout
			if epsTimeout <= 0 {
				epsTimeout = 5 * time.Second
			}
			_ = tagger.ConvertGraphicsFiles(o.Subproc, ws.RootDir, epsTimeout)
			_ = tagger.RewriteGraphicsTree(ws.RootDir)
		}

		result, err := o.Compiler.Compile(ws.RootDir, cand, marker, tc)
		if err != nil {
			continue
		}

		refs := o.parseOutput(result.TextPath, marker, cand.Title)
		if len(refs) >= 1 {
			return refs
		}
	}
	return nil
}

func (o *Orchestrator) parseOutput(textPath string, marker types.MarkerStyle, title string) []types.Reference {
	data, err := os.ReadFile(textPath)
	if err != nil {
		return nil
	}
	var refs []types.Reference
	if marker == types.MarkerPdf {
		refs = parse.PDF(string(data), o.Collab.Categories)
	} else {
		lines := splitLines(string(data))
		refs = parse.DVI(lines, title)
	}
	for i, r := range refs {
		refs[i] = types.Reference(clean.FoldUnicode(string(r)))
	}
	return refs
}

func splitLines(s string) []string {
	scanner := bufio.NewScanner(strings.NewReader(s))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// outcomeWarning renders the stderr message for a non-OutcomeOk result.
// ClassifyRefs only populates Reason for OutcomeFailed, so the empty and
// too-few cases need their own text here.
func outcomeWarning(outcome types.ExtractionOutcome) string {
	switch outcome.Kind {
	case types.OutcomeEmpty:
		return "no references found"
	case types.OutcomeTooFew:
		return fmt.Sprintf("only %d references found", outcome.Count)
	default:
		return outcome.Reason
	}
}

func (o *Orchestrator) warnf(item *types.ArxivItem, format string, args ...any) {
	if o.Stderr == nil {
		return
	}
	fmt.Fprintf(o.Stderr, "%s: %s\n", item.EprintID, fmt.Sprintf(format, args...))
}

// emit writes the canonical output-file format: a %R/%Z header followed
// by one reference per line.
func emit(outPath, bibcode string, refs []types.Reference) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".refextract-*")
	if err != nil {
		return fmt.Errorf("creating temp output: %w", err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	fmt.Fprintf(w, "%%R %s\n", bibcode)
	fmt.Fprintln(w, "%Z")
	for _, r := range refs {
		fmt.Fprintln(w, strings.TrimRight(string(r), " \t"))
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, outPath)
}
