// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package clean normalizes a raw reference string recovered from
// typeset TeX or PDF output into a tidy, single-line reference.
//
// Implements: spec.md section 4.9 (Reference Cleaner), supplemented with
// a Unicode confusable-folding pass derived from the classic pipeline's
// refstring normalizer.
package clean

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// numberingStyle classifies how a raw reference begins, driving which
// leading-noise-stripping rule applies.
type numberingStyle int

const (
	styleNone numberingStyle = iota
	styleNumberSpace
	styleBracketed
)

var (
	bracketedNumberRegex = regexp.MustCompile(`^\s*(\[\d+\]|\(\d+\)|\[[A-Za-z0-9]{1,6}\])`)
	numberSpaceRegex     = regexp.MustCompile(`^\s*\d+\W`)
	leadingDigitLetter   = regexp.MustCompile(`^\s*\d+([A-Za-z])`)
	redundantLeadingNum  = regexp.MustCompile(`^\s*\d+\s*(\[\d+\])`)
	leadingNumberPair    = regexp.MustCompile(`^\s*\d+\s+\d+\W\s*`)
	hyphenSpacingRegex   = regexp.MustCompile(`\s*-\s*`)
	backslashUpperQuote  = regexp.MustCompile(`\\([A-Z])([a-zA-Z]*)"`)
	commaSpaceRegex      = regexp.MustCompile(`\s*,\s*`)
)

// HyphenRepairPolicy selects the behavior of AppendDVIFragment when a
// reference's accumulated text ends in a hyphen immediately before a
// broken preprint id. Classic ADS behavior appends without stripping
// the hyphen; this is preserved as a versioned, auditable flag per the
// documented open question rather than silently "fixed".
type HyphenRepairPolicy int

const (
	// HyphenRepairClassic preserves the trailing hyphen (append), matching
	// observed classic output byte-for-byte.
	HyphenRepairClassic HyphenRepairPolicy = iota
)

var brokenPreprintID = regexp.MustCompile(`^[a-z]+[ /]+\d{7}`)

// AppendDVIFragment appends fragment to acc under policy, implementing
// the DVI cleaner's documented hyphen-append-vs-overwrite branch.
func AppendDVIFragment(acc, fragment string, policy HyphenRepairPolicy) string {
	switch policy {
	case HyphenRepairClassic:
		// Both arms currently append; the hyphen/broken-id test is a
		// placeholder for a future HyphenRepairFixed policy that would
		// strip the hyphen on this branch instead.
		if strings.HasSuffix(acc, "-") && brokenPreprintID.MatchString(strings.TrimSpace(fragment)) {
			return acc + fragment
		}
		return acc + fragment
	default:
		return acc + fragment
	}
}

// Clean normalizes raw into a single tidy reference line. title, if
// non-empty, is stripped as a redundant substring (with an optional
// trailing digit) when present.
func Clean(raw string, title string) string {
	s := strings.TrimSpace(raw)
	s = strings.Join(strings.Fields(s), " ")

	if title != "" {
		s = removeOneTitleOccurrence(s, title)
	}

	style := classifyNumbering(s)
	s = hyphenSpacingRegex.ReplaceAllString(s, "-")
	s = stripLeadingNoise(s, style)
	s = backslashUpperQuote.ReplaceAllString(s, `"$1$2"`)
	s = commaSpaceRegex.ReplaceAllString(s, ", ")
	s = strings.TrimSpace(s)

	return s
}

func removeOneTitleOccurrence(s, title string) string {
	idx := strings.Index(s, title)
	if idx < 0 {
		return s
	}
	end := idx + len(title)
	// Absorb one optional trailing digit (classic behavior for
	// footnote/edition markers glued onto the title in typeset text).
	if end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:idx] + s[end:]
}

func classifyNumbering(s string) numberingStyle {
	if bracketedNumberRegex.MatchString(s) {
		return styleBracketed
	}
	if numberSpaceRegex.MatchString(s) {
		return styleNumberSpace
	}
	return styleNone
}

func stripLeadingNoise(s string, style numberingStyle) string {
	switch style {
	case styleBracketed:
		return redundantLeadingNum.ReplaceAllString(s, "$1")
	case styleNumberSpace:
		return leadingNumberPair.ReplaceAllString(s, "")
	default:
		return leadingDigitLetter.ReplaceAllString(s, "$1")
	}
}

// FoldUnicode applies the supplemented Unicode confusable-folding pass:
// NFKD decomposition followed by mapping visually similar hyphen,
// quote, slash, and tilde variants down to their ASCII forms. This
// mirrors the classic pipeline's separate refstring normalizer, which
// ran independently of the core TeX/DVI cleaning steps above.
func FoldUnicode(s string) string {
	s = norm.NFKD.String(s)
	s = foldRunes(s, hyphenVariants, '-')
	s = foldRunes(s, singleQuoteVariants, '\'')
	s = foldRunes(s, doubleQuoteVariants, '"')
	s = foldRunes(s, slashVariants, '/')
	s = foldRunes(s, tildeVariants, '~')
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

var (
	hyphenVariants      = []rune{'‐', '‑', '⁃', '‒', '–', '—', '―', '−', '－', '⁻'}
	singleQuoteVariants = []rune{
		'‘', '’', '‚', '‛', // single quotes
		'՚', 'Ꞌ', 'ꞌ', '＇', // apostrophe variants
		'`', '´', // accents
	}
	doubleQuoteVariants = []rune{'“', '”', '„', '‟'}
	slashVariants       = []rune{'⁄', '∕'}
	tildeVariants       = []rune{'˜', '⁓', '∼', '∽', '∿', '〜', '～'}
)

func foldRunes(s string, variants []rune, target rune) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		folded := r
		for _, v := range variants {
			if r == v {
				folded = target
				break
			}
		}
		b.WriteRune(folded)
	}
	return b.String()
}
