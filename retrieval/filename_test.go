package retrieval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/use-agent/judfetch/models"
)

func TestFilename(t *testing.T) {
	long := strings.Repeat("甲", 180)
	tests := []struct {
		name     string
		number   string
		category string
		want     string
	}{
		{"citation", "臺灣臺北地方法院 112 年度訴字第 1 號刑事判決", "詐欺", "臺灣臺北地方法院 112 年度訴字第 1 號刑事判決_詐欺.pdf"},
		{"strips punctuation", "112/訴:1", "(詐欺)", "112訴1_詐欺.pdf"},
		{"keeps full-width comma", "甲，乙", "", "甲，乙.pdf"},
		{"sentinels", models.NotFound, models.NotFound, "unknown_case.pdf"},
		{"failed read", models.Failed, models.Failed, "unknown_case.pdf"},
		{"empty number", "", "詐欺", "unknown_case_詐欺.pdf"},
		{"nothing usable", "!!!", "", "unknown_case.pdf"},
		{"long ascii number", strings.Repeat("A", 180), strings.Repeat("b", 40), strings.Repeat("A", 150) + "_" + strings.Repeat("b", 40) + ".pdf"},
		{"long ascii both", strings.Repeat("A", 180), strings.Repeat("b", 80), strings.Repeat("A", 150) + "_" + strings.Repeat("b", 50) + ".pdf"},
		{"long ascii number alone", strings.Repeat("A", 250), "", strings.Repeat("A", 200) + ".pdf"},
		{"long cjk number", long, strings.Repeat("乙", 40), strings.Repeat("甲", 59) + "_" + strings.Repeat("乙", 20) + ".pdf"},
		{"long cjk both", long, strings.Repeat("乙", 80), strings.Repeat("甲", 59) + "_" + strings.Repeat("乙", 20) + ".pdf"},
		{"long cjk number alone", strings.Repeat("甲", 250), "", strings.Repeat("甲", 80) + ".pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filename(tt.number, tt.category)
			if got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
			if again := Filename(tt.number, tt.category); again != got {
				t.Errorf("Filename() not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestFilename_Bounded(t *testing.T) {
	tests := []struct {
		name             string
		number, category string
	}{
		{"cjk", strings.Repeat("案", 500), strings.Repeat("由", 500)},
		{"mixed widths", strings.Repeat("a案", 120), strings.Repeat("b由", 40)},
		{"four-byte runes", strings.Repeat("𠀀", 150), strings.Repeat("𠀁", 50)},
		{"ascii", strings.Repeat("a", 500), strings.Repeat("b", 500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filename(tt.number, tt.category)
			if n := utf8.RuneCountInString(strings.TrimSuffix(got, Extension)); n > maxNameRunes+1 {
				t.Errorf("name has %d runes, want at most %d", n, maxNameRunes+1)
			}
			if len(got) > maxNameBytes+len(Extension) {
				t.Errorf("name has %d bytes, want at most %d", len(got), maxNameBytes+len(Extension))
			}
			if !utf8.ValidString(got) {
				t.Errorf("name %q is not valid UTF-8", got)
			}
		})
	}
}

func TestWriteUnique_LongCJKName(t *testing.T) {
	dir := t.TempDir()
	name := Filename(strings.Repeat("字", 150), strings.Repeat("案", 50))

	for i := 0; i < 3; i++ {
		if _, err := writeUnique(dir, name, []byte("pdf")); err != nil {
			t.Fatalf("writeUnique() #%d error = %v", i+1, err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Errorf("wrote %d files, want 3", len(entries))
	}
}

func TestWriteUnique(t *testing.T) {
	dir := t.TempDir()

	first, err := writeUnique(dir, "a.pdf", []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := writeUnique(dir, "a.pdf", []byte("two"))
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(first) != "a.pdf" {
		t.Errorf("first = %q, want a.pdf", filepath.Base(first))
	}
	if filepath.Base(second) != "a (2).pdf" {
		t.Errorf("second = %q, want a (2).pdf", filepath.Base(second))
	}
	data, _ := os.ReadFile(first)
	if string(data) != "one" {
		t.Errorf("first file overwritten: %q", data)
	}
}
