// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Debug subcommands run one pipeline stage in isolation against a single
// fulltext path, for diagnosing a failing item without running the whole
// batch. Additive tooling per SPEC_FULL.md SUPPLEMENTED FEATURES item 1
// (original_source/ads_ref_extract/tex.py's entrypoint() subcommands).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshintel/arxiv-refextract/internal/archive"
	"github.com/meshintel/arxiv-refextract/internal/clean"
	"github.com/meshintel/arxiv-refextract/internal/compile"
	"github.com/meshintel/arxiv-refextract/internal/parse"
	"github.com/meshintel/arxiv-refextract/internal/subprocrunner"
	"github.com/meshintel/arxiv-refextract/internal/tagger"
	"github.com/meshintel/arxiv-refextract/internal/texsource"
	"github.com/meshintel/arxiv-refextract/internal/toolchain"
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Run one pipeline stage in isolation for troubleshooting",
}

var debugUnpackCmd = &cobra.Command{
	Use:   "unpack SOURCE DESTDIR",
	Short: "Unpack a single archive into DESTDIR",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(args[1], 0o755); err != nil {
			return err
		}
		subproc := subprocrunner.New(types.DefaultSubprocessConfig())
		unpacker := archive.New(subproc, 30*time.Second)
		ws := &types.Workspace{RootDir: args[1]}
		if err := unpacker.Unpack(ws, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "unpacked into %s\n", args[1])
		return nil
	},
}

var debugTagCmd = &cobra.Command{
	Use:   "tag FILE",
	Short: "Tag one TeX/bib/bbl file's references in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		macro, _ := cmd.Flags().GetString("macro")
		markerName, _ := cmd.Flags().GetString("marker")
		convertPS, _ := cmd.Flags().GetBool("convert-ps")

		marker := types.MarkerPdf
		if markerName == "dvi" {
			marker = types.MarkerDvi
		}

		n, err := tagger.Tag(args[0], macro, marker, convertPS)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "tagged %d references in %s\n", n, args[0])
		return nil
	},
}

var debugExtractCmd = &cobra.Command{
	Use:   "extract DIR",
	Short: "Score candidates, compile the best one, and print recovered references",
	Long: `Extract runs main-file discovery over DIR, tags and compiles each
candidate in score order, and prints the recovered reference strings for
the first one that produces any -- the same search order the orchestrator
uses for a TeX-format item, without needing a full batch job line.`,
	Args: cobra.ExactArgs(1),
	RunE: runDebugExtract,
}

func runDebugExtract(cmd *cobra.Command, args []string) error {
	dir := args[0]
	texBase, _ := cmd.Flags().GetString("texbase")
	subdate, _ := cmd.Flags().GetInt("subdate")
	convertPS, _ := cmd.Flags().GetBool("convert-ps")

	candidates, err := texsource.Find(dir)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no candidate TeX sources found under %s", dir)
	}

	tc := toolchain.New(texBase).Select(subdate)
	subproc := subprocrunner.New(types.DefaultSubprocessConfig())
	compiler := compile.New(subproc, types.DefaultSubprocessConfig().CompileTimeout)

	for _, cand := range candidates {
		if cand.Ignore {
			fmt.Fprintf(os.Stderr, "skipping %s (auto-ignore)\n", cand.File)
			continue
		}
		fmt.Fprintf(os.Stderr, "trying %s (score %d)\n", cand.File, cand.Score)

		absPath := filepath.Join(dir, cand.File)
		if _, err := tagger.Tag(absPath, cand.BibitemMacro, types.MarkerPdf, convertPS); err != nil {
			fmt.Fprintf(os.Stderr, "  tag failed: %v\n", err)
			continue
		}
		if convertPS {
			_ = tagger.RewriteGraphicsTree(dir)
		}

		result, err := compiler.Compile(dir, cand, types.MarkerPdf, tc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  compile failed: %v\n", err)
			continue
		}

		data, err := os.ReadFile(result.TextPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  reading text output failed: %v\n", err)
			continue
		}

		refs := parse.PDF(string(data), nil)
		if len(refs) == 0 {
			continue
		}
		for _, r := range refs {
			fmt.Fprintln(os.Stdout, clean.FoldUnicode(string(r)))
		}
		return nil
	}

	return fmt.Errorf("no candidate under %s produced any references", dir)
}

func init() {
	debugTagCmd.Flags().String("macro", "", "custom bibitem macro name to also match")
	debugTagCmd.Flags().String("marker", "pdf", "marker family to inject: pdf or dvi")
	debugTagCmd.Flags().Bool("convert-ps", false, "also rewrite PostScript graphics references to PDF")

	debugExtractCmd.Flags().String("texbase", "", "root directory containing one subdirectory per historical TeX install")
	debugExtractCmd.Flags().Int("subdate", 0, "submission date (YYYYMMDD) used to select the era-appropriate toolchain")
	debugExtractCmd.Flags().Bool("convert-ps", false, "rewrite PostScript graphics references to PDF in every source file before compiling each candidate")

	debugCmd.AddCommand(debugUnpackCmd)
	debugCmd.AddCommand(debugTagCmd)
	debugCmd.AddCommand(debugExtractCmd)

	rootCmd.AddCommand(debugCmd)
}
