// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meshintel/arxiv-refextract/internal/archive"
	"github.com/meshintel/arxiv-refextract/internal/batch"
	"github.com/meshintel/arxiv-refextract/internal/compile"
	"github.com/meshintel/arxiv-refextract/internal/ledger"
	"github.com/meshintel/arxiv-refextract/internal/orchestrator"
	"github.com/meshintel/arxiv-refextract/internal/subprocrunner"
	"github.com/meshintel/arxiv-refextract/internal/toolchain"
	"github.com/meshintel/arxiv-refextract/internal/workspace"
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the batch driver over jobs read from stdin",
	Long: `Process reads whitespace-separated job lines from stdin (path
[bibcode [accno [subdate]]]), extracts references for each, and writes
"path\tout_path" to stdout for every item that produced output. The
process's exit code is always 0; per-item failures are reported on stderr
and, if --ledger is set, recorded durably.`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func buildPipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()
	cfg.FulltextBase = viper.GetString("pbase")
	cfg.TargetRefsBase = viper.GetString("tbase")
	cfg.Toolchain.TexBase = viper.GetString("texbase")
	cfg.Workspace.ScratchRoot = viper.GetString("scratch")
	cfg.Workspace.Debug, _ = cmd.Flags().GetCount("debug")
	cfg.LedgerPath = viper.GetString("ledger")
	cfg.Force = viper.GetBool("force")
	cfg.TryPDF = !viper.GetBool("no-pdf")
	cfg.NoHarvest = viper.GetBool("no-harvest")
	cfg.SkipRefs = viper.GetBool("skip-refs")
	cfg.Tagger.ConvertPS = !viper.GetBool("no-convert-ps")
	return cfg
}

func buildOrchestrator(cfg types.PipelineConfig) *orchestrator.Orchestrator {
	subproc := subprocrunner.New(cfg.Subprocess)

	return &orchestrator.Orchestrator{
		Config: cfg,
		Collab: orchestrator.Collaborators{
			PathParser: defaultArxivPathParser{},
		},
		Workspace:  workspace.New(cfg.Workspace.ScratchRoot),
		Unpacker:   archive.New(subproc, cfg.Subprocess.CompileTimeout),
		Toolchains: toolchain.New(cfg.Toolchain.TexBase),
		Compiler:   compile.New(subproc, cfg.Subprocess.CompileTimeout),
		Subproc:    subproc,
		Stderr:     os.Stderr,
	}
}

// ledgeringProcessor wraps an *orchestrator.Orchestrator to additionally
// record every outcome to a ledger.Ledger when one is configured.
type ledgeringProcessor struct {
	orch   *orchestrator.Orchestrator
	ledger *ledger.Ledger
}

func (p ledgeringProcessor) Process(job types.Job) (orchestrator.Outcome, *types.ItemError) {
	start := time.Now()
	outcome, itemErr := p.orch.Process(job)
	if p.ledger == nil {
		return outcome, itemErr
	}

	relpath := job.Item.RawPath
	if job.Item.Resolved != nil {
		relpath = job.Item.Resolved.CanonicalRelpath
	} else if item, err := p.orch.Collab.PathParser.Parse(job.Item.RawPath); err == nil {
		relpath = item.CanonicalRelpath
	}
	finished := time.Now()
	if itemErr != nil {
		_ = p.ledger.RecordFailure(context.Background(), relpath, itemErr, finished.Sub(start), finished)
	} else if outcome.OutPath != "" {
		_ = p.ledger.RecordSuccess(context.Background(), relpath, job.Bibcode, outcome.OutPath, outcome.RefCount, finished.Sub(start), finished)
	}
	return outcome, itemErr
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := buildPipelineConfig(cmd)
	orch := buildOrchestrator(cfg)

	var proc batch.Processor = orch
	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer l.Close()
		proc = ledgeringProcessor{orch: orch, ledger: l}
	}

	batch.Run(os.Stdin, os.Stdout, os.Stderr, proc)
	return nil
}
