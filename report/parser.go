// Package report ingests tabular scan-report rows into the inventory
// graph. Rows arrive as loosely typed column maps exported from
// spreadsheet tooling, so parsing is a set of deterministic text rules
// rather than a grammar.
package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadRow marks a row the parser could not use. Handlers treat it as
// terminal rather than retrying.
var ErrBadRow = errors.New("unusable report row")

// Row is one parsed report row. Combined is set when the license field
// carries the COMBINED keyword marking multi-license terms.
type Row struct {
	Name       string
	Version    string
	Licenses   []string
	Combined   bool
	Copyrights []string
	Files      []string
	Folder     string
	URL        string
}

// ParseRow applies the text rules to one raw row. Column lookup is
// case-insensitive and tolerant of singular/plural header variants.
func ParseRow(data map[string]any) (*Row, error) {
	cols := make(map[string]string, len(data))
	for k, v := range data {
		s, ok := v.(string)
		if !ok {
			continue
		}
		cols[strings.ToLower(strings.TrimSpace(k))] = s
	}
	lookup := func(names ...string) string {
		for _, n := range names {
			if v, ok := cols[n]; ok {
				return v
			}
		}
		return ""
	}

	component := CleanField(lookup("component", "name", "component name"))
	if component == "" {
		return nil, fmt.Errorf("%w: no component column", ErrBadRow)
	}
	name, version := SplitNameVersion(component)
	licenseField := CleanField(lookup("license", "licenses"))

	return &Row{
		Name:       name,
		Version:    version,
		Licenses:   SplitLicenses(licenseField),
		Combined:   strings.Contains(strings.ToUpper(licenseField), "COMBINED"),
		Copyrights: ParseCopyrights(lookup("copyright", "copyrights")),
		Files:      ParseFileList(lookup("files", "file paths", "paths")),
		Folder:     CleanField(lookup("folder", "directory")),
		URL:        CleanField(lookup("url", "details url", "homepage")),
	}, nil
}

// SplitNameVersion splits a combined name+version string. A trailing
// run of digits and dots, optionally separated by a space, is the
// version; the rest is the name.
func SplitNameVersion(s string) (name, version string) {
	s = strings.TrimSpace(s)
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		i--
	}
	if i == len(s) || i == 0 {
		return s, ""
	}
	version = s[i:]
	if !strings.ContainsAny(version, "0123456789") {
		return s, ""
	}
	return strings.TrimSpace(s[:i]), version
}

// SplitLicenses splits a license field into individual identifiers. A
// field carrying the COMBINED keyword is split on " OR ", then each
// token on " AND "; otherwise the field is a single identifier.
func SplitLicenses(field string) []string {
	if field == "" {
		return nil
	}
	if !strings.Contains(strings.ToUpper(field), "COMBINED") {
		return []string{field}
	}

	expr := strings.TrimSpace(field)
	if idx := strings.Index(strings.ToUpper(expr), "COMBINED"); idx != -1 {
		expr = strings.TrimSpace(expr[idx+len("COMBINED"):])
		expr = strings.TrimLeft(expr, ":")
		expr = strings.TrimSpace(expr)
	}

	var out []string
	for _, orTok := range strings.Split(expr, " OR ") {
		for _, andTok := range strings.Split(orTok, " AND ") {
			if id := CleanField(andTok); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

// ParseCopyrights splits a free-text copyright block into entries. A
// line starting with "copyright" opens a new entry; any other line
// continues the previous one. Lines before the first copyright line are
// dropped.
func ParseCopyrights(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = CleanField(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "copyright") {
			out = append(out, line)
			continue
		}
		if len(out) > 0 {
			out[len(out)-1] += " " + line
		}
	}
	return out
}

// ParseFileList splits a newline-separated file-path block.
func ParseFileList(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		if p := CleanField(line); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanField strips control characters and spreadsheet-export artifacts
// from one cell value.
func CleanField(s string) string {
	s = strings.ReplaceAll(s, "_x000D_", "")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

// CommonBasePath returns the longest directory prefix shared by all
// paths. Separators may be slashes or backslashes; the result uses
// slashes.
func CommonBasePath(paths []string) string {
	var dirs [][]string
	for _, p := range paths {
		segs := splitPath(p)
		if len(segs) == 0 {
			continue
		}
		dirs = append(dirs, segs[:len(segs)-1])
	}
	if len(dirs) == 0 {
		return ""
	}

	common := dirs[0]
	for _, d := range dirs[1:] {
		n := len(common)
		if len(d) < n {
			n = len(d)
		}
		i := 0
		for i < n && common[i] == d[i] {
			i++
		}
		common = common[:i]
	}
	return strings.Join(common, "/")
}

// BasePath decides the inventory item's base path for one row. The
// default is the common prefix of the row's files. When the row names a
// folder at least two directory levels below that prefix, the base path
// is pulled up two levels instead, so sibling items land under a shared
// ancestor directory.
func BasePath(files []string, folder string) string {
	prefix := CommonBasePath(files)
	f := strings.Join(splitPath(folder), "/")
	if prefix == "" {
		return f
	}
	if f == "" || !strings.HasPrefix(f, prefix+"/") {
		return prefix
	}

	below := splitPath(strings.TrimPrefix(f, prefix+"/"))
	if len(below) < 2 {
		return prefix
	}
	segs := splitPath(prefix)
	if len(segs) <= 2 {
		return ""
	}
	return strings.Join(segs[:len(segs)-2], "/")
}

func splitPath(p string) []string {
	p = strings.ReplaceAll(p, `\`, "/")
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
