// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meshintel/arxiv-refextract/internal/subprocrunner"
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

func newTestUnpacker() *Unpacker {
	runner := subprocrunner.New(types.SubprocessConfig{SignalEscalationDelay: 20 * time.Millisecond})
	return New(runner, 5*time.Second)
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for name, contents := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(contents))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header: %v", err)
		}
		if _, err := tw.Write([]byte(contents)); err != nil {
			t.Fatalf("writing tar body: %v", err)
		}
	}
}

func TestUnpackTarGz(t *testing.T) {
	src := t.TempDir()
	archivePath := filepath.Join(src, "1234.5678.tar.gz")
	writeTarGz(t, archivePath, map[string]string{"main.tex": "\\documentclass{article}"})

	ws := &types.Workspace{RootDir: t.TempDir()}
	u := newTestUnpacker()
	if err := u.Unpack(ws, archivePath); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	if _, err := os.Stat(filepath.Join(ws.RootDir, "main.tex")); err != nil {
		t.Fatalf("expected main.tex to be extracted: %v", err)
	}
}

func TestUnpackPlainTex(t *testing.T) {
	src := t.TempDir()
	inputPath := filepath.Join(src, "paper.tex")
	if err := os.WriteFile(inputPath, []byte("\\documentclass{article}"), 0o644); err != nil {
		t.Fatalf("writing input: %v", err)
	}

	ws := &types.Workspace{RootDir: t.TempDir()}
	u := newTestUnpacker()
	if err := u.Unpack(ws, inputPath); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws.RootDir, "paper.tex")); err != nil {
		t.Fatalf("expected paper.tex to be copied in: %v", err)
	}
}

func TestUnpackWeirdExtensionGetsTexSuffix(t *testing.T) {
	src := t.TempDir()
	inputPath := filepath.Join(src, "0704.0001")
	if err := os.WriteFile(inputPath, []byte("\\documentclass{article}"), 0o644); err != nil {
		t.Fatalf("writing input: %v", err)
	}

	ws := &types.Workspace{RootDir: t.TempDir()}
	u := newTestUnpacker()
	if err := u.Unpack(ws, inputPath); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws.RootDir, "0704.0001.tex")); err != nil {
		t.Fatalf("expected renamed .tex file: %v", err)
	}
}

func TestUnpackEmptyArchiveFails(t *testing.T) {
	src := t.TempDir()
	archivePath := filepath.Join(src, "empty.tar.gz")
	writeTarGz(t, archivePath, map[string]string{})

	ws := &types.Workspace{RootDir: t.TempDir()}
	u := newTestUnpacker()
	if err := u.Unpack(ws, archivePath); err == nil {
		t.Fatal("expected an error for an archive that unpacks to nothing")
	}
}
