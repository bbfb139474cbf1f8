// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive unpacks an item's input fulltext file into its
// workspace, producing a directory of plain TeX sources ready for the
// Main-File Finder.
//
// Implements: spec.md section 4.3 (Archive Unpacker).
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meshintel/arxiv-refextract/internal/subprocrunner"
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

// Unpacker copies an item's input file into its workspace and expands it
// according to its extension.
type Unpacker struct {
	runner  *subprocrunner.Runner
	timeout time.Duration
}

// New creates an Unpacker that shells out through runner. timeout bounds
// each tar/zcat invocation.
func New(runner *subprocrunner.Runner, timeout time.Duration) *Unpacker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Unpacker{runner: runner, timeout: timeout}
}

// Unpack expands inputPath into ws.RootDir. On return, ws.RootDir
// contains one or more source files. An input whose extension is not
// one of the archive or .tex forms above (a .pdf included) is copied in
// with a .tex suffix appended and treated as plain TeX.
func (u *Unpacker) Unpack(ws *types.Workspace, inputPath string) error {
	base := strings.ToLower(filepath.Base(inputPath))
	dest := filepath.Join(ws.RootDir, filepath.Base(inputPath))

	switch {
	case strings.HasSuffix(base, ".tar.gz"), strings.HasSuffix(base, ".tgz"):
		if err := u.run(ws.RootDir, "tar", "xzf", inputPath); err != nil {
			return fmt.Errorf("unpacking tar.gz archive: %w", err)
		}
	case strings.HasSuffix(base, ".tar"):
		if err := u.run(ws.RootDir, "tar", "xf", inputPath); err != nil {
			return fmt.Errorf("unpacking tar archive: %w", err)
		}
	case strings.HasSuffix(base, ".tex.gz"), strings.HasSuffix(base, ".gz"):
		outName := strings.TrimSuffix(filepath.Base(dest), ".gz")
		if err := u.run(ws.RootDir, "sh", "-c", fmt.Sprintf("zcat %q >%q", inputPath, outName)); err != nil {
			return fmt.Errorf("decompressing gzip source: %w", err)
		}
	case strings.HasSuffix(base, ".tex"):
		if err := u.copyIn(inputPath, dest); err != nil {
			return err
		}
	default:
		// Plain TeX with a weird or missing extension: rename with a
		// .tex suffix so the Main-File Finder will consider it.
		if err := u.copyIn(inputPath, dest+".tex"); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(ws.RootDir)
	if err != nil {
		return fmt.Errorf("reading unpacked workspace %s: %w", ws.RootDir, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("archive %s unpacked to an empty directory", inputPath)
	}
	return nil
}

func (u *Unpacker) copyIn(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening input file %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s into workspace: %w", src, err)
	}
	return nil
}

func (u *Unpacker) run(dir string, argv ...string) error {
	code, err := u.runner.Run(u.timeout, argv, subprocrunner.Options{Dir: dir})
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("command %v exited with status %d", argv, code)
	}
	return nil
}
