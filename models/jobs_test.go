package models

import (
	"errors"
	"testing"
)

func TestProgressFuncReport(t *testing.T) {
	var got []float64
	f := ProgressFunc(func(fraction float64, _ string) { got = append(got, fraction) })
	f.Report(-0.5, "")
	f.Report(0.25, "")
	f.Report(1.5, "")

	want := []float64{0, 0.25, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("report %d: got %v, want %v", i, got[i], want[i])
		}
	}

	var nilFunc ProgressFunc
	nilFunc.Report(0.5, "no panic")
}

func TestDownloadJobComplete(t *testing.T) {
	tests := []struct {
		name   string
		files  []string
		errs   []string
		status string
	}{
		{"all succeeded", []string{"a.pdf", "b.pdf"}, nil, StatusCompleted},
		{"some failed", []string{"a.pdf"}, []string{"b: artifact link not found"}, StatusPartial},
		{"all failed", nil, []string{"a: boom", "b: boom"}, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewDownloadJob("d1", "s1", 2)
			job.Report(0.5, "1/2")
			if v := job.View(); v.Completed != 1 {
				t.Errorf("Completed = %d after half progress, want 1", v.Completed)
			}
			job.Complete(tt.files, tt.errs, "bundle.zip", []byte("zip"))
			if job.Status() != tt.status {
				t.Errorf("Status() = %q, want %q", job.Status(), tt.status)
			}
			name, data := job.Archive()
			if name != "bundle.zip" || string(data) != "zip" {
				t.Errorf("Archive() = %q, %q", name, data)
			}
		})
	}
}

func TestSearchJobLifecycle(t *testing.T) {
	job := NewSearchJob("s1", "test")
	if job.Status() != StatusProcessing {
		t.Fatalf("new job status = %q", job.Status())
	}

	job.Report(0.5, "page 1/2")
	job.Complete(&SearchResult{Records: records(25), TotalPages: 3, PagesVisited: 2})

	v := job.View(2, 20)
	if v.Status != StatusCompleted || v.Total != 25 || len(v.Records) != 5 {
		t.Errorf("View(2, 20) = status %q total %d records %d", v.Status, v.Total, len(v.Records))
	}
	if v.Records[0].Title != "judgment 21" {
		t.Errorf("first record on page 2 = %q", v.Records[0].Title)
	}

	if v := job.View(368934881474191033, 50); len(v.Records) != 0 || v.Total != 25 {
		t.Errorf("View of a page far past the end = total %d records %d, want 25 and 0", v.Total, len(v.Records))
	}

	failed := NewSearchJob("s2", "test")
	failed.Fail(NewScrapeError(ErrCodeBrowserCrash, "failed to launch browser", errors.New("no chrome")))
	if v := failed.View(1, 20); v.Error == nil || v.Error.Code != ErrCodeBrowserCrash {
		t.Errorf("failed job error = %+v", v.Error)
	}
}
