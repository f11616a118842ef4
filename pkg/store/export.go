package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/resembl/resembl/internal/errs"
)

// Export writes each snippet's code to <safe_name>.asm inside directory
// (spec §4.E `export`). Names are sanitized and the resolved path is
// required to remain inside directory (path-traversal guard); snippets
// whose resolved path escapes the root are skipped with a warning, not an
// error, so one bad name never aborts the whole export.
func (s *Store) Export(directory string) error {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return errs.New(errs.IOFailure, "store.Export", err)
	}
	root, err := filepath.Abs(directory)
	if err != nil {
		return errs.New(errs.IOFailure, "store.Export", err)
	}

	snippets, err := s.List(0, 0)
	if err != nil {
		return err
	}

	for _, snip := range snippets {
		name := snip.Checksum
		if len(snip.Names) > 0 {
			name = snip.Names[0]
		}
		safeName := sanitizeExportName(name)

		target := filepath.Join(root, safeName+".asm")
		resolved, err := filepath.Abs(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "store.Export: warning: skipping %s: %v\n", snip.Checksum, err)
			continue
		}
		if resolved != root && !strings.HasPrefix(resolved, root+string(os.PathSeparator)) {
			fmt.Fprintf(os.Stderr, "store.Export: warning: skipping %s: resolved path %q escapes export root\n", snip.Checksum, resolved)
			continue
		}

		if err := os.WriteFile(resolved, []byte(snip.Code), 0644); err != nil {
			return errs.New(errs.IOFailure, "store.Export", err)
		}
	}
	return nil
}

// sanitizeExportName replaces ".." runs with "_", then keeps only the
// basename, per spec §4.E `export`.
func sanitizeExportName(name string) string {
	sanitized := strings.ReplaceAll(name, "..", "_")
	return filepath.Base(sanitized)
}

// ExportYara writes one YARA rule per snippet to path (spec §4.E
// `export_yara`).
func (s *Store) ExportYara(path string) error {
	snippets, err := s.List(0, 0)
	if err != nil {
		return err
	}

	var sb strings.Builder
	for _, snip := range snippets {
		primary := snip.Checksum
		if len(snip.Names) > 0 {
			primary = snip.Names[0]
		}
		ruleName := fmt.Sprintf("resembl_%s_%s", sanitizeYaraIdent(primary), snip.Checksum[:8])

		sb.WriteString(fmt.Sprintf("rule %s\n{\n    strings:\n", ruleName))
		sb.WriteString(fmt.Sprintf("        $asm = \"%s\" nocase ascii wide\n", escapeYaraString(snip.Code)))
		sb.WriteString("    condition:\n        $asm\n}\n\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return errs.New(errs.IOFailure, "store.ExportYara", err)
	}
	return nil
}

// sanitizeYaraIdent maps any character outside [A-Za-z0-9_] to "_" and
// prefixes with "r_" if the result would not start with a letter or
// underscore (spec §4.E `export_yara`).
func sanitizeYaraIdent(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	sanitized := sb.String()
	if sanitized == "" || !isIdentStartYara(rune(sanitized[0])) {
		return "r_" + sanitized
	}
	return sanitized
}

func isIdentStartYara(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

// escapeYaraString applies the C-style escapes spec §4.E requires:
// backslash, double-quote, carriage return, newline.
func escapeYaraString(code string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\r", `\r`,
		"\n", `\n`,
	)
	return replacer.Replace(code)
}
