// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/meshintel/arxiv-refextract/pkg/types"
)

// knownSuffixes lists the suffixes types.ClassifyFormat recognizes, longest
// first so "tar.gz" is tried before the bare "gz" it also ends with.
var knownSuffixes = []string{"tar.gz", "tex.gz", "pdf.gz", "tar", "tex", "pdf", "gz"}

var (
	newStyleID = regexp.MustCompile(`^(?:arXiv/)?(\d{2})(\d{2})/(\d{4,5})(?:v\d+)?$`)
	oldStyleID = regexp.MustCompile(`^([a-z][a-z-]*(?:\.[A-Za-z]{2})?)/(\d{2})(\d{2})(\d{3})(?:v\d+)?$`)
)

// defaultArxivPathParser is a minimal, local implementation of
// collab.ArxivPathParser covering the classic and current ArXiv id
// schemes described in spec.md's glossary. Deployments that need the
// authoritative parser (subsuming withdrawal/cross-listing lookups) should
// inject their own collab.ArxivPathParser instead; this default exists so
// `refextract process` is runnable standalone.
type defaultArxivPathParser struct{}

func (defaultArxivPathParser) Parse(rawPath string) (*types.ArxivItem, error) {
	suffix, relPath := splitSuffix(rawPath)
	if suffix == "" {
		return nil, fmt.Errorf("unrecognized file suffix on %q", rawPath)
	}

	if m := newStyleID.FindStringSubmatch(relPath); m != nil {
		yy, mm, num := m[1], m[2], m[3]
		year, _ := strconv.Atoi(yy)
		return &types.ArxivItem{
			RawPath:          rawPath,
			EprintID:         yy + mm + "." + num,
			Year:             2000 + year,
			Suffix:           suffix,
			CanonicalRelpath: "arXiv/" + yy + mm + "/" + num,
		}, nil
	}

	if m := oldStyleID.FindStringSubmatch(relPath); m != nil {
		category, yy, mm, num := m[1], m[2], m[3], m[4]
		year, _ := strconv.Atoi(yy)
		if year >= 91 {
			year += 1900
		} else {
			year += 2000
		}
		return &types.ArxivItem{
			RawPath:          rawPath,
			EprintID:         category + "/" + yy + mm + num,
			Category:         category,
			Year:             year,
			Suffix:           suffix,
			CanonicalRelpath: category + "/" + yy + mm + num,
		}, nil
	}

	return nil, fmt.Errorf("cannot parse eprint id from %q", relPath)
}

// splitSuffix strips the longest recognized suffix from rawPath, returning
// it along with the remaining path. Returns ("", rawPath) if nothing
// recognized matches.
func splitSuffix(rawPath string) (suffix, relPath string) {
	for _, suf := range knownSuffixes {
		if strings.HasSuffix(rawPath, "."+suf) {
			return suf, strings.TrimSuffix(rawPath, "."+suf)
		}
	}
	return "", rawPath
}
