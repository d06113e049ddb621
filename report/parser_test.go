package report

import (
	"reflect"
	"testing"
)

func TestSplitNameVersion(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantName    string
		wantVersion string
	}{
		{"space separated", "zlib 1.2.13", "zlib", "1.2.13"},
		{"no separator", "openssl3.0.8", "openssl", "3.0.8"},
		{"no version", "busybox", "busybox", ""},
		{"trailing dot only", "libfoo.", "libfoo.", ""},
		{"all digits", "12345", "12345", ""},
		{"version with many dots", "libbar 1.0.0.0", "libbar", "1.0.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, version := SplitNameVersion(tt.in)
			if name != tt.wantName || version != tt.wantVersion {
				t.Errorf("SplitNameVersion(%q) = (%q, %q), want (%q, %q)",
					tt.in, name, version, tt.wantName, tt.wantVersion)
			}
		})
	}
}

func TestSplitLicenses(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single license untouched", "Apache-2.0", []string{"Apache-2.0"}},
		{"combined or", "COMBINED: MIT OR Apache-2.0", []string{"MIT", "Apache-2.0"}},
		{
			"combined or and",
			"COMBINED MIT OR Apache-2.0 AND BSD-3-Clause",
			[]string{"MIT", "Apache-2.0", "BSD-3-Clause"},
		},
		{"empty", "", nil},
		{
			"single with internal or untouched",
			"MIT OR Apache-2.0",
			[]string{"MIT OR Apache-2.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitLicenses(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitLicenses(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCopyrights(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "continuation joined",
			in:   "Copyright 2020 Acme Corp\nAll rights reserved.\nCopyright 2021 Other Inc",
			want: []string{"Copyright 2020 Acme Corp All rights reserved.", "Copyright 2021 Other Inc"},
		},
		{
			name: "case insensitive marker",
			in:   "copyright (c) 1999 someone",
			want: []string{"copyright (c) 1999 someone"},
		},
		{
			name: "leading continuation dropped",
			in:   "stray line\nCopyright 2022 Acme",
			want: []string{"Copyright 2022 Acme"},
		},
		{
			name: "blank lines skipped",
			in:   "Copyright 2020 A\n\n  \nand contributors",
			want: []string{"Copyright 2020 A and contributors"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCopyrights(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCopyrights() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanField(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"carriage return artifact", "MIT_x000D_", "MIT"},
		{"control characters", "lib\x01foo\x7f", "libfoo"},
		{"quoted cell", `"zlib 1.2.13"`, "zlib 1.2.13"},
		{"surrounding whitespace", "  BSD-2-Clause \t", "BSD-2-Clause"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanField(tt.in); got != tt.want {
				t.Errorf("CleanField(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCommonBasePath(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{
			name:  "shared prefix",
			paths: []string{"src/vendor/zlib/inflate.c", "src/vendor/zlib/deflate.c"},
			want:  "src/vendor/zlib",
		},
		{
			name:  "diverging at second level",
			paths: []string{"src/vendor/zlib/a.c", "src/vendor/png/b.c"},
			want:  "src/vendor",
		},
		{
			name:  "backslash separators",
			paths: []string{`src\vendor\zlib\a.c`, `src\vendor\zlib\b.c`},
			want:  "src/vendor/zlib",
		},
		{
			name:  "single file uses its directory",
			paths: []string{"src/vendor/zlib/a.c"},
			want:  "src/vendor/zlib",
		},
		{
			name:  "no files",
			paths: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommonBasePath(tt.paths); got != tt.want {
				t.Errorf("CommonBasePath(%v) = %q, want %q", tt.paths, got, tt.want)
			}
		})
	}
}

func TestBasePath(t *testing.T) {
	files := []string{"src/vendor/zlib/contrib/minizip/zip.c", "src/vendor/zlib/contrib/minizip/unzip.c"}

	tests := []struct {
		name   string
		folder string
		want   string
	}{
		{
			name:   "deep folder pulls base up two levels",
			folder: "src/vendor/zlib/contrib/minizip/extra/legacy",
			want:   "src/vendor/zlib",
		},
		{
			name:   "shallow folder keeps prefix",
			folder: "src/vendor/zlib/contrib/minizip/extra",
			want:   "src/vendor/zlib/contrib/minizip",
		},
		{
			name: "no folder keeps prefix",
			want: "src/vendor/zlib/contrib/minizip",
		},
		{
			name:   "folder outside prefix keeps prefix",
			folder: "other/tree",
			want:   "src/vendor/zlib/contrib/minizip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BasePath(files, tt.folder); got != tt.want {
				t.Errorf("BasePath(files, %q) = %q, want %q", tt.folder, got, tt.want)
			}
		})
	}
}

func TestParseRow(t *testing.T) {
	row, err := ParseRow(map[string]any{
		"Component": "zlib 1.2.13",
		"License":   "COMBINED: Zlib OR MIT",
		"Copyright": "Copyright 1995 Jean-loup Gailly\nand Mark Adler",
		"Files":     "src/vendor/zlib/inflate.c\nsrc/vendor/zlib/deflate.c_x000D_",
		"URL":       "https://zlib.net",
		"Rows":      42, // non-string cells are ignored
	})
	if err != nil {
		t.Fatalf("ParseRow: %v", err)
	}

	if row.Name != "zlib" || row.Version != "1.2.13" {
		t.Errorf("name/version = %q %q", row.Name, row.Version)
	}
	if !reflect.DeepEqual(row.Licenses, []string{"Zlib", "MIT"}) {
		t.Errorf("licenses = %v", row.Licenses)
	}
	if !row.Combined {
		t.Error("combined = false, want true for a COMBINED license field")
	}
	if !reflect.DeepEqual(row.Copyrights, []string{"Copyright 1995 Jean-loup Gailly and Mark Adler"}) {
		t.Errorf("copyrights = %v", row.Copyrights)
	}
	if !reflect.DeepEqual(row.Files, []string{"src/vendor/zlib/inflate.c", "src/vendor/zlib/deflate.c"}) {
		t.Errorf("files = %v", row.Files)
	}
	if row.URL != "https://zlib.net" {
		t.Errorf("url = %q", row.URL)
	}
}

func TestParseRowWithoutComponent(t *testing.T) {
	if _, err := ParseRow(map[string]any{"License": "MIT"}); err == nil {
		t.Fatal("expected error for row without component")
	}
}
