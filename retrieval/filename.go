package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/use-agent/judfetch/models"
)

// Filename limits, in runes.
const (
	maxNameRunes     = 200
	caseNumberRunes  = 150
	caseCategoryRune = 50
)

// Filename limits, in UTF-8 bytes. Filesystems cap a name at 255 bytes;
// the rest is left for the extension and a collision suffix.
const (
	maxNameBytes      = 240
	caseCategoryBytes = 60
)

// FallbackName is used when a case number yields no usable characters.
const FallbackName = "unknown_case"

// Extension of every artifact.
const Extension = ".pdf"

// allowed are the punctuation and citation characters kept besides letters
// and digits.
const allowed = " ，年第字號"

// SafeName keeps letters and digits of any script plus the citation
// delimiters in allowed, and trims surrounding spaces.
func SafeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || strings.ContainsRune(allowed, r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isSentinel(s string) bool {
	return s == models.NotFound || s == models.Failed || s == models.Unknown
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}

// Filename derives the artifact file name from a case number and category.
// The result depends only on its inputs. When the joined name would exceed
// 200 runes the case number is cut to 150 and the category to 50. A name
// still over 240 bytes keeps at most 60 bytes of category and gives the
// rest to the case number.
func Filename(caseNumber, caseCategory string) string {
	num, cat := "", ""
	if !isSentinel(caseNumber) {
		num = SafeName(caseNumber)
	}
	if !isSentinel(caseCategory) {
		cat = SafeName(caseCategory)
	}
	if num == "" {
		num = FallbackName
	}

	if cat == "" {
		return truncateBytes(truncateRunes(num, maxNameRunes), maxNameBytes) + Extension
	}
	if utf8.RuneCountInString(num)+1+utf8.RuneCountInString(cat) > maxNameRunes {
		num = truncateRunes(num, caseNumberRunes)
		cat = truncateRunes(cat, caseCategoryRune)
	}
	if len(num)+1+len(cat) > maxNameBytes {
		cat = truncateBytes(cat, caseCategoryBytes)
		num = truncateBytes(num, maxNameBytes-1-len(cat))
	}
	return num + "_" + cat + Extension
}

// writeUnique writes data to dir/name. If the name is taken, " (2)",
// " (3)", ... is inserted before the extension.
func writeUnique(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 1; ; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", candidate, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("write %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", candidate, err)
		}
		return path, nil
	}
}
