// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package toolchain selects the historical TeX install to use for a
// given submission date and applies it as process-local environment for
// one compile invocation.
//
// Implements: spec.md section 4.4 (Toolchain Selector).
package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/meshintel/arxiv-refextract/pkg/types"
)

// edge is one row of the subdate cutover table: subdates >= Since use
// this Tree/Cnf pair.
type edge struct {
	Since int    `yaml:"since"`
	Tree  string `yaml:"tree"`
	Cnf   string `yaml:"cnf"`
}

// defaultTable is the built-in cutover table from spec.md section 4.4,
// ordered newest-first.
var defaultTable = []edge{
	{20170209, "TL2016", ""},
	{20111206, "TL2011", ""},
	{20091231, "TL2009", ""},
	{20061102, "teTeX3", "teTeX3/web2c"},
	{20040101, "teTeX2", "texmf-2004/web2c"},
	{20030101, "teTeX2", "texmf-2003/web2c"},
	{20020901, "teTeX2", "texmf-2002/web2c"},
}

// fallbackEdge is the "else" row: applied when subdate is below every
// entry in the table.
var fallbackEdge = edge{0, "teTeX2", "texmf/web2c"}

// Selector chooses a Toolchain for a submission date.
type Selector struct {
	texBase string
	table   []edge
}

// New creates a Selector rooted at texBase, the directory containing one
// subdirectory per historical TeX install.
func New(texBase string) *Selector {
	table := make([]edge, len(defaultTable))
	copy(table, defaultTable)
	return &Selector{texBase: texBase, table: table}
}

// LoadOverride reads a YAML file that extends or replaces the built-in
// cutover table (spec.md section 6: "override" configuration surface).
// The file is a list of {since, tree, cnf} rows; entries are merged with
// the built-in table by `since`, with the override winning ties, then
// re-sorted newest-first.
func (s *Selector) LoadOverride(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading toolchain override %s: %w", path, err)
	}
	var overrides []edge
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing toolchain override %s: %w", path, err)
	}

	merged := map[int]edge{}
	for _, e := range s.table {
		merged[e.Since] = e
	}
	for _, e := range overrides {
		merged[e.Since] = e
	}
	table := make([]edge, 0, len(merged))
	for _, e := range merged {
		table = append(table, e)
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Since > table[j].Since })
	s.table = table
	return nil
}

// Select returns the Toolchain in effect for subdate.
func (s *Selector) Select(subdate int) types.Toolchain {
	chosen := fallbackEdge
	for _, e := range s.table {
		if subdate >= e.Since {
			chosen = e
			break
		}
	}

	tc := types.Toolchain{
		PathPrepend: filepath.Join(s.texBase, chosen.Tree, "bin"),
	}
	if chosen.Cnf != "" {
		tc.TexmfCnf = filepath.Join(s.texBase, chosen.Cnf)
	}
	return tc
}

// Environ returns env with tc applied: PATH gets tc.PathPrepend
// prepended, and TEXMFCNF is set (or left unset) per tc.TexmfCnf. env is
// not mutated; a new slice is returned.
func Environ(env []string, tc types.Toolchain) []string {
	out := make([]string, 0, len(env)+2)
	sawPath := false
	for _, kv := range env {
		if len(kv) >= 5 && kv[:5] == "PATH=" {
			sawPath = true
			out = append(out, "PATH="+tc.PathPrepend+string(os.PathListSeparator)+kv[5:])
			continue
		}
		if len(kv) >= 9 && kv[:9] == "TEXMFCNF=" {
			continue // replaced below if tc sets one
		}
		out = append(out, kv)
	}
	if !sawPath {
		out = append(out, "PATH="+tc.PathPrepend)
	}
	if tc.TexmfCnf != "" {
		out = append(out, "TEXMFCNF="+tc.TexmfCnf)
	}
	return out
}
