// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tagger rewrites a candidate TeX source file so each
// bibliography item is bracketed with extraction markers that survive
// compilation and are recoverable from the compiled text output.
//
// Implements: spec.md section 4.6 (Reference Tagger).
package tagger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/meshintel/arxiv-refextract/internal/subprocrunner"
	"github.com/meshintel/arxiv-refextract/pkg/types"
)

var (
	startRefsRegex = regexp.MustCompile(`(?i)\\begin\s*\{(chapthebibliography|thebibliography|references)\}`)
	endRefsRegex   = regexp.MustCompile(`(?i)^\s*\\end\s*\{(chapthebibliography|thebibliography|references)\}`)
	hyphenRunRegex = regexp.MustCompile(`\b(\w+\s*)--(\s*\w+)\b`)

	// diacriticBraced matches "{\`e}" style accents; diacriticCmdBraced
	// matches "\`{e}"; diacriticBare matches "\`e".
	diacriticBraced     = regexp.MustCompile("\\{\\\\([`'^\"~=.]|H|c|b|d|u|v|t)([A-Za-z])\\}")
	diacriticCmdBraced  = regexp.MustCompile("\\\\([`'^\"~=.]|H|c|b|d|u|v|t)\\{([A-Za-z])\\}")
	diacriticBare       = regexp.MustCompile("\\\\([`'^\"~=.]|H|c|b|d|u|v|t)([A-Za-z])")
	emphRegexes         = []*regexp.Regexp{
		regexp.MustCompile(`\{\\em\s+([^{}]*)\}`),
		regexp.MustCompile(`\{\\it\s+([^{}]*)\}`),
		regexp.MustCompile(`\\textit\{([^{}]*)\}`),
		regexp.MustCompile(`\\emph\{([^{}]*)\}`),
	}
	graphicsExtRegex = regexp.MustCompile(`(?i)\.(ps|eps|epsi|epsf)\b`)
)

type refType int

const (
	refTypeUnknown refType = iota
	refTypeBibitem
	refTypeReference
)

// startItemRegex builds the per-file "start of reference item" matcher,
// which also recognizes the file's custom bibitem macro.
func startItemRegex(bibitemMacro string) *regexp.Regexp {
	if bibitemMacro == "" {
		bibitemMacro = "bibitem"
	}
	macro := regexp.QuoteMeta(bibitemMacro)
	pattern := fmt.Sprintf(`(?i)^\s*\\(bibitem|reference|rn|rf|rfprep|item|%s)\b(.*)`, macro)
	return regexp.MustCompile(pattern)
}

// markers holds the open/close wrap tokens for one MarkerStyle.
type markers struct {
	refOpen, refClose             string
	bibliographyOpen, bibliographyClose string
}

func markersFor(style types.MarkerStyle) markers {
	if style == types.MarkerDvi {
		return markers{
			refOpen:              `\special{citation_open} `,
			refClose:             ` \special{citation_close}`,
			bibliographyOpen:     `\special{ref_open}`,
			bibliographyClose:    `\special{ref_close}`,
		}
	}
	return markers{
		refOpen:           `\newpage\onecolumn\section*{}$<$r$>$\sloppy\raggedright`,
		refClose:          `$<$/r$>$`,
		bibliographyOpen:  `$<$references$>$`,
		bibliographyClose: `$<$/references$>$`,
	}
}

// Tag rewrites file in place, bracketing each bibliography item with
// extraction markers. It returns the number of references tagged.
func Tag(file string, bibitemMacro string, style types.MarkerStyle, convertPS bool) (int, error) {
	n, err := tagOnce(file, bibitemMacro, style, false)
	if err != nil {
		return 0, err
	}
	if n == 0 && isBibFile(file) {
		// Bibliography-only file: the preamble marker never appeared.
		// Rewind and tag from the very first line.
		n, err = tagOnce(file, bibitemMacro, style, true)
		if err != nil {
			return 0, err
		}
	}

	if err := normalizeEmphasis(file); err != nil {
		return n, fmt.Errorf("normalizing emphasis in %s: %w", file, err)
	}

	if convertPS {
		if err := RewriteGraphics(file); err != nil {
			return n, fmt.Errorf("rewriting graphics references in %s: %w", file, err)
		}
	}

	return n, nil
}

func isBibFile(file string) bool {
	lower := strings.ToLower(file)
	return strings.HasSuffix(lower, ".bib") || strings.HasSuffix(lower, ".bbl")
}

// tagOnce performs Phase A. When fromTop is true, tagging begins
// immediately instead of waiting for the bibliography preamble.
func tagOnce(file, bibitemMacro string, style types.MarkerStyle, fromTop bool) (int, error) {
	in, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", file, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(file), ".tagger-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file for %s: %w", file, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		tmp.Close()
		if !success {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	mk := markersFor(style)
	startItem := startItemRegex(bibitemMacro)

	inBiblio := fromTop
	if fromTop {
		fmt.Fprintln(w, mk.bibliographyOpen)
	}

	for !inBiblio && scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(w, line)
		if startRefsRegex.MatchString(line) {
			fmt.Fprintln(w, mk.bibliographyOpen)
			inBiblio = true
		}
	}

	nTagged := 0
	if inBiblio {
		var tag, curBody string
		curType := refTypeUnknown

		flush := func() {
			if curBody == "" {
				return
			}
			writeTaggedRef(w, tag, curBody, curType, mk)
			nTagged++
			curBody = ""
		}

		for scanner.Scan() {
			line := scanner.Text()
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "%") {
				continue
			}

			if endRefsRegex.MatchString(line) {
				flush()
				fmt.Fprintln(w, mk.bibliographyClose)
				fmt.Fprintln(w, line)
				break
			}

			line = hyphenRunRegex.ReplaceAllString(line, "$1-$2")

			if m := startItem.FindStringSubmatch(line); m != nil {
				macro := strings.ToLower(m[1])
				if tag == "" {
					tag = macro
					switch macro {
					case "bibitem", strings.ToLower(bibitemMacro):
						curType = refTypeBibitem
					case "reference", "ref":
						curType = refTypeReference
					}
				}
				flush()
				curBody = m[2]
			} else if tag != "" {
				curBody += "\n" + line
			} else {
				fmt.Fprintln(w, line)
			}
		}
		flush()
	}

	for scanner.Scan() {
		fmt.Fprintln(w, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scanning %s: %w", file, err)
	}

	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("flushing tagged output for %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing tagged output for %s: %w", file, err)
	}
	if err := os.Rename(tmpPath, file); err != nil {
		return 0, fmt.Errorf("renaming tagged output into place for %s: %w", file, err)
	}
	success = true

	return nTagged, nil
}

// writeTaggedRef peels the leading bracketed argument(s) off body per
// its ref type, strips diacritic macros, and writes the wrapped
// reference.
func writeTaggedRef(w *bufio.Writer, tag, body string, kind refType, mk markers) {
	prefix := tag
	switch kind {
	case refTypeBibitem:
		left, rest := splitOnDelimitedPrefix(body, '[', ']')
		prefix += left
		left, rest = splitOnDelimitedPrefix(rest, '{', '}')
		prefix += left
		body = rest
	case refTypeReference:
		left, rest := splitOnDelimitedPrefix(body, '{', '}')
		prefix += left
		body = rest
	}

	body = stripDiacritics(body)

	fmt.Fprintf(w, "\\%s %s%s\n%s\n", prefix, mk.refOpen, body, mk.refClose)
}

// splitOnDelimitedPrefix mirrors the classic balanced-bracket peel: if
// text starts with optional whitespace then open, it returns the
// balanced prefix (including delimiters) and the remainder. Otherwise it
// returns an empty prefix and the original text.
func splitOnDelimitedPrefix(text string, open, close rune) (string, string) {
	depth := 0
	runes := []rune(text)
	for idx, r := range runes {
		if depth > 0 {
			switch r {
			case open:
				depth++
			case close:
				depth--
			}
			if depth == 0 {
				return string(runes[:idx+1]), string(runes[idx+1:])
			}
			continue
		}
		switch {
		case r == ' ' || r == '\t' || r == '\n':
			continue
		case r == open:
			depth++
		default:
			return "", text
		}
	}
	return "", text
}

func stripDiacritics(body string) string {
	body = diacriticBraced.ReplaceAllString(body, "$2")
	body = diacriticCmdBraced.ReplaceAllString(body, "$2")
	body = diacriticBare.ReplaceAllString(body, "$2")
	return body
}

// normalizeEmphasis is Phase B: it runs over the whole file, replacing
// italic/emphasis macros with plain double-quoted text.
func normalizeEmphasis(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	text := string(data)
	for _, re := range emphRegexes {
		text = re.ReplaceAllString(text, `"$1"`)
	}
	return writeFileAtomic(file, text)
}

// RewriteGraphics is the text half of Phase C: it rewrites PostScript
// graphics extensions to .pdf across the file. It does not touch the
// graphics files themselves; ConvertGraphicsFiles produces the .pdf
// counterparts on disk.
func RewriteGraphics(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	text := graphicsExtRegex.ReplaceAllString(string(data), ".pdf")
	return writeFileAtomic(file, text)
}

// RewriteGraphicsTree runs RewriteGraphics over every TeX/bib/bbl source
// file under dir, not just the tagged main candidate. Phase C's
// extension swap is "global in every source file": a main file that
// \input{}s a sub-file referencing a .eps graphic must see that
// reference rewritten too, or it stays stale even after
// ConvertGraphicsFiles has produced the .pdf for the whole tree.
func RewriteGraphicsTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if !isSourceFile(path) {
			return nil
		}
		return RewriteGraphics(path)
	})
}

func isSourceFile(path string) bool {
	lower := strings.ToLower(path)
	return hasAnySourceSuffix(lower, ".tex", ".ltx", ".latex", ".revtex", ".bib", ".bbl")
}

func hasAnySourceSuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// ConvertGraphicsFiles runs epstopdf, via runner, over every PostScript
// file found under dir that has no matching .pdf sibling yet.
func ConvertGraphicsFiles(runner *subprocrunner.Runner, dir string, timeout time.Duration) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		lower := strings.ToLower(path)
		if !hasAnyGraphicsSuffix(lower) {
			return nil
		}
		pdfPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".pdf"
		if _, statErr := os.Stat(pdfPath); statErr == nil {
			return nil
		}
		_, runErr := runner.Run(timeout, []string{"epstopdf", path}, subprocrunner.Options{Dir: filepath.Dir(path)})
		return runErr
	})
}

func hasAnyGraphicsSuffix(lower string) bool {
	for _, suf := range []string{".ps", ".eps", ".epsi", ".epsf"} {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

func writeFileAtomic(file, contents string) error {
	tmp, err := os.CreateTemp(filepath.Dir(file), ".tagger-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(contents); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, file)
}
