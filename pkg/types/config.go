// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SubprocessConfig holds settings for the Subprocess Runner.
type SubprocessConfig struct {
	// CompileTimeout bounds a single TeX compile invocation (default 100s).
	CompileTimeout time.Duration `json:"compile_timeout" yaml:"compile_timeout"`

	// EpstopdfTimeout bounds a single epstopdf invocation (default 5s).
	EpstopdfTimeout time.Duration `json:"epstopdf_timeout" yaml:"epstopdf_timeout"`

	// SignalEscalationDelay is the pause between TERM, HUP, and KILL when
	// a child process group outlives its timeout.
	SignalEscalationDelay time.Duration `json:"signal_escalation_delay" yaml:"signal_escalation_delay"`
}

// DefaultSubprocessConfig returns the spec-mandated defaults.
func DefaultSubprocessConfig() SubprocessConfig {
	return SubprocessConfig{
		CompileTimeout:         100 * time.Second,
		EpstopdfTimeout:        5 * time.Second,
		SignalEscalationDelay:  2 * time.Second,
	}
}

// WorkspaceConfig holds settings for the Workspace Manager.
type WorkspaceConfig struct {
	// ScratchRoot is the process-wide directory under which per-item
	// scratch directories are created (default: os.TempDir()).
	ScratchRoot string `json:"scratch_root" yaml:"scratch_root"`

	// Debug controls retention: values > 1 keep the scratch directory
	// after the item completes.
	Debug int `json:"debug" yaml:"debug"`
}

// ToolchainConfig holds settings for the Toolchain Selector.
type ToolchainConfig struct {
	// TexBase is the root directory containing one subdirectory per
	// historical TeX install (TL2016, TL2011, teTeX3, ...).
	TexBase string `json:"tex_base" yaml:"tex_base"`

	// OverridePath names a YAML file of subdate cutover entries in the
	// format toolchain.Selector.LoadOverride reads. The pipeline built by
	// cmd/refextract does not read this field or load the file.
	OverridePath string `json:"override_path" yaml:"override_path"`
}

// TaggerConfig holds settings for the Reference Tagger.
type TaggerConfig struct {
	// ConvertPS controls whether the Phase C graphics rewrite
	// (.ps/.eps/.epsi/.epsf -> .pdf, with epstopdf conversion) runs.
	ConvertPS bool `json:"convert_ps" yaml:"convert_ps"`
}

// PipelineConfig groups the per-stage configuration for one batch run,
// plus the base directories named in spec.md section 6.
type PipelineConfig struct {
	Subprocess SubprocessConfig `json:"subprocess" yaml:"subprocess"`
	Workspace  WorkspaceConfig  `json:"workspace" yaml:"workspace"`
	Toolchain  ToolchainConfig  `json:"toolchain" yaml:"toolchain"`
	Tagger     TaggerConfig     `json:"tagger" yaml:"tagger"`

	// FulltextBase ("pbase") is the base directory for input fulltext
	// sources.
	FulltextBase string `json:"fulltext_base" yaml:"fulltext_base"`

	// TargetRefsBase ("tbase") is the base directory for output .raw
	// reference files.
	TargetRefsBase string `json:"target_refs_base" yaml:"target_refs_base"`

	// LedgerPath, if set, points at the SQLite ledger database file. If
	// empty, the ledger is disabled for this run.
	LedgerPath string `json:"ledger_path" yaml:"ledger_path"`

	// Force recreates target output files even when they are newer than
	// the source.
	Force bool `json:"force" yaml:"force"`

	// TryPDF allows falling back to the PDF path when TeX extraction
	// fails. Items whose source format is PDF take the PDF path whatever
	// its value.
	TryPDF bool `json:"try_pdf" yaml:"try_pdf"`

	// NoHarvest disables invoking the PDF harvester collaborator before a
	// PDF fallback attempt.
	NoHarvest bool `json:"no_harvest" yaml:"no_harvest"`

	// SkipRefs performs all processing but does not write the output
	// file, matching the classic --skip-refs flag.
	SkipRefs bool `json:"skip_refs" yaml:"skip_refs"`
}

// DefaultPipelineConfig returns a PipelineConfig with the spec-mandated
// defaults for every sub-config.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Subprocess: DefaultSubprocessConfig(),
		TryPDF:     true,
		Tagger:     TaggerConfig{ConvertPS: true},
	}
}
