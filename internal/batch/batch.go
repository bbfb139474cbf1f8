// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch drives the orchestrator over a stream of jobs read from
// an input reader, one per line.
//
// Implements: spec.md section 4.11 (Batch Driver).
package batch

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/meshintel/arxiv-refextract/internal/orchestrator"
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

// Processor is the subset of orchestrator.Orchestrator the driver needs,
// narrowed for testability.
type Processor interface {
	Process(job types.Job) (orchestrator.Outcome, *types.ItemError)
}

// Summary reports what one Run call did.
type Summary struct {
	Total   int
	Failed  int
	Skipped int
	Emitted int
}

// Run reads whitespace-separated job lines from in ("path [bibcode
// [accno [subdate]]]"), dispatches each to proc, and writes
// "path\tout_path" to out for every item that produced output. It
// reports a stderr summary line on completion. The caller's process
// exit code is always 0 regardless of the returned Summary's Failed
// count, matching classic behavior.
func Run(in io.Reader, out, stderr io.Writer, proc Processor) Summary {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var summary Summary
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		summary.Total++

		job, err := parseLine(line)
		if err != nil {
			summary.Failed++
			fmt.Fprintf(stderr, "%s: %v\n", line, err)
			continue
		}

		outcome, itemErr := proc.Process(job)
		if itemErr != nil {
			summary.Failed++
			fmt.Fprintf(stderr, "%s: %s\n", job.Item.RawPath, itemErr.Error())
			if itemErr.Fatal() {
				break
			}
			continue
		}
		if outcome.Skipped {
			summary.Skipped++
			continue
		}
		if outcome.OutPath == "" {
			// Accept/reject rejected the item (too few or zero
			// references); the orchestrator already logged the reason.
			continue
		}

		summary.Emitted++
		fmt.Fprintf(out, "%s\t%s\n", job.Item.RawPath, outcome.OutPath)
	}

	fmt.Fprintf(stderr, "processed %s, %s failed\n",
		humanize.Comma(int64(summary.Total)), humanize.Comma(int64(summary.Failed)))

	return summary
}

// parseLine splits one input line into a Job. Extra columns beyond
// subdate are ignored.
func parseLine(line string) (types.Job, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return types.Job{}, fmt.Errorf("empty input line")
	}

	job := types.Job{Item: types.Item{RawPath: fields[0]}}
	if len(fields) > 1 {
		job.Bibcode = fields[1]
	}
	if len(fields) > 2 {
		job.Accno = fields[2]
	}
	if len(fields) > 3 {
		subdate, err := strconv.Atoi(fields[3])
		if err != nil {
			return types.Job{}, fmt.Errorf("invalid subdate %q: %w", fields[3], err)
		}
		job.Subdate = subdate
	}
	return job, nil
}
