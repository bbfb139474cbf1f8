// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package texsource scores the files inside an unpacked workspace to
// guess which one is the paper's main TeX document, and to recover the
// bibliography macro and title it uses.
//
// Implements: spec.md section 4.5 (Main-File Finder).
package texsource

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/meshintel/arxiv-refextract/pkg/types"
)

// basenameScoreDeltas penalizes well-known template files that are
// frequently bundled alongside a real submission but are never the
// actual paper.
var basenameScoreDeltas = map[string]int{
	"mn2eguide":      -100,
	"mn2esample":     -100,
	"mnras_guide":    -100,
	"aa":             -100,
	"new_feat":       -50,
	"rnaas":          -5,
	"mnras_template": -2,
}

var (
	latexDocclassRegexes = []*regexp.Regexp{
		regexp.MustCompile(`^\s*\\begin\s*\{document\}`),
		regexp.MustCompile(`^\s*\\documentclass\b`),
		regexp.MustCompile(`^\s*\\documentstyle\b`),
	}
	mainFileRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\\title\{`),
		regexp.MustCompile(`(?i)^\s*\\begin\s*\{abstract\}\b`),
		regexp.MustCompile(`(?i)^\s*\\section\s*\{introduction\}\b`),
		regexp.MustCompile(`(?i)^\s*\\begin\s*\{(chapthebibliography|thebibliography|references)\}`),
	}
	shorttitleRegex   = regexp.MustCompile(`(?i)^\s*\\shorttitle\s*\{(.*)\}`)
	newcommandBibitem = regexp.MustCompile(`(?i)^\s*\\newcommand\s*\{\\([^}]+)\}.*?\{\\bibitem\b`)
	defBibitem        = regexp.MustCompile(`(?i)^\s*\\def\{?\\(.+?)\{\\bibitem\b`)
	inputBraced       = regexp.MustCompile(`^\s*\\input\{\s*(\S*?)\s*\}`)
	inputBare         = regexp.MustCompile(`^\s*\\input\s+(\S+)`)
)

func matchAny(line string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// minTitleLength is the shortest string treated as a real title; shorter
// captures are discarded as noise (e.g. a stray "{}" from a malformed
// \shorttitle).
const minTitleLength = 10

// Find scans every regular file under root and returns the resulting
// candidates sorted by descending score.
func Find(root string) ([]types.MainCandidate, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notMain := map[string]bool{}
	var candidates []types.MainCandidate

	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			rel = f
		}
		cand, resolvedPath, ok := probeOne(f, rel, notMain)
		if !ok {
			continue
		}
		_ = resolvedPath
		candidates = append(candidates, cand)
	}

	for i := range candidates {
		rel := candidates[i].File
		base := strings.TrimSuffix(rel, filepath.Ext(rel))
		if notMain[rel] {
			candidates[i].Score = -2
		} else if notMain[base] {
			candidates[i].Score = -1
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	var defaultBibitem, defaultTitle string
	for _, c := range candidates {
		if defaultBibitem == "" && c.BibitemMacro != "" {
			defaultBibitem = c.BibitemMacro
		}
		if defaultTitle == "" && len(c.Title) >= minTitleLength {
			defaultTitle = c.Title
		}
	}
	if defaultBibitem == "" {
		defaultBibitem = "bibitem"
	}

	for i := range candidates {
		if len(candidates[i].Title) < minTitleLength {
			candidates[i].Title = ""
		}
		if candidates[i].BibitemMacro == "" {
			candidates[i].BibitemMacro = defaultBibitem
		}
		if candidates[i].Title == "" {
			candidates[i].Title = defaultTitle
		}
	}

	return candidates, nil
}

// probeOne scores a single candidate file. rel is the path relative to
// the workspace root; notMain accumulates \input targets discovered
// while scanning any file.
func probeOne(absPath, rel string, notMain map[string]bool) (types.MainCandidate, string, bool) {
	lower := strings.ToLower(rel)
	if strings.Contains(lower, "psfig") {
		return types.MainCandidate{}, "", false
	}

	switch {
	case hasAnySuffix(lower, ".pdf", ".jpg", ".jpeg", ".png", ".xml", ".psd", ".mp4"):
		return types.MainCandidate{}, "", false
	}

	cand := types.MainCandidate{File: rel}

	switch {
	case hasAnySuffix(lower, ".tex", ".ltx", ".latex", ".revtex"):
		cand.Score++
		if strings.HasSuffix(rel, ".TEX") {
			renamed := strings.TrimSuffix(absPath, ".TEX") + ".tex"
			if err := os.Rename(absPath, renamed); err == nil {
				absPath = renamed
				rel = strings.TrimSuffix(rel, ".TEX") + ".tex"
				cand.File = rel
			}
		}
	case hasAnySuffix(lower, ".bib", ".bbl"):
	case hasAnySuffix(lower, ".txt") || !strings.HasPrefix(filepath.Base(lower), "."):
	default:
		return types.MainCandidate{}, "", false
	}

	base := strings.TrimSuffix(lower, filepath.Ext(lower))
	cand.Score += basenameScoreDeltas[filepath.Base(base)]
	cand.Basename = strings.TrimSuffix(rel, filepath.Ext(rel))

	f, err := os.Open(absPath)
	if err != nil {
		return types.MainCandidate{}, "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.Contains(line, "%auto-ignore") {
			cand.Ignore = true
			break
		}

		if matchAny(line, latexDocclassRegexes) {
			cand.Format = types.FormatLatex
			cand.Score++
		}
		if matchAny(line, mainFileRegexes) {
			cand.Score++
			continue
		}
		if m := shorttitleRegex.FindStringSubmatch(line); m != nil {
			cand.Title = m[1]
			cand.Score++
			continue
		}
		if m := newcommandBibitem.FindStringSubmatch(line); m != nil {
			cand.BibitemMacro = m[1]
			continue
		}
		if m := defBibitem.FindStringSubmatch(line); m != nil {
			cand.BibitemMacro = m[1]
			continue
		}
		if m := inputBraced.FindStringSubmatch(line); m != nil {
			notMain[m[1]] = true
			continue
		}
		if m := inputBare.FindStringSubmatch(line); m != nil {
			notMain[m[1]] = true
			continue
		}
	}

	return cand, absPath, true
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
