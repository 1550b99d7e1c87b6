package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/use-agent/judfetch/models"
)

// Entry is one archive member.
type Entry struct {
	Name string
	Data []byte
}

// ArchiveName returns the download name of an artifact archive created at t.
// Archives of a whole result set carry an extra marker.
func ArchiveName(scope string, t time.Time) string {
	stamp := t.Format("20060102_150405")
	if scope == models.ScopeAll {
		return fmt.Sprintf("裁判書合集_全部_%s.zip", stamp)
	}
	return fmt.Sprintf("裁判書合集_%s.zip", stamp)
}

// WriteZip writes entries to w as a deflated zip archive.
func WriteZip(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("add %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("write %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// ReadEntries loads files from disk as archive entries named by their base
// name.
func ReadEntries(paths []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(p), err)
		}
		entries = append(entries, Entry{Name: filepath.Base(p), Data: data})
	}
	return entries, nil
}
