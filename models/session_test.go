package models

import (
	"errors"
	"math"
	"testing"
)

func TestSessionConfigValidate(t *testing.T) {
	ua := []string{"Mozilla/5.0"}
	tests := []struct {
		name    string
		cfg     SessionConfig
		wantErr bool
	}{
		{"valid", SessionConfig{Keyword: "詐欺", MaxPages: 1, UserAgents: ua}, false},
		{"upper bound", SessionConfig{Keyword: "test", MaxPages: 25, UserAgents: ua}, false},
		{"blank keyword", SessionConfig{Keyword: "  ", MaxPages: 1, UserAgents: ua}, true},
		{"zero pages", SessionConfig{Keyword: "test", MaxPages: 0, UserAgents: ua}, true},
		{"too many pages", SessionConfig{Keyword: "test", MaxPages: 26, UserAgents: ua}, true},
		{"empty pool", SessionConfig{Keyword: "test", MaxPages: 1}, true},
		{"page size too small", SessionConfig{Keyword: "test", MaxPages: 1, PageSize: 5, UserAgents: ua}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var se *ScrapeError
				if !errors.As(err, &se) || se.Code != ErrCodeInvalidInput {
					t.Errorf("expected %s, got %v", ErrCodeInvalidInput, err)
				}
				return
			}
			if cfg.PageSize != DefaultPageSize {
				t.Errorf("PageSize = %d, want default %d", cfg.PageSize, DefaultPageSize)
			}
		})
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name                  string
		total, page, pageSize int
		wantStart, wantEnd    int
	}{
		{"first page", 45, 1, 20, 0, 20},
		{"last partial page", 45, 3, 20, 40, 45},
		{"past the end", 45, 4, 20, 45, 45},
		{"zero page treated as first", 5, 0, 20, 0, 5},
		{"default size", 30, 2, 0, 20, 30},
		{"empty", 0, 1, 20, 0, 0},
		{"huge page", 30, 368934881474191033, 50, 30, 30},
		{"max int page", 30, math.MaxInt, 10, 30, 30},
		{"max int page size", 30, 2, math.MaxInt, 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := PageBounds(tt.total, tt.page, tt.pageSize)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("PageBounds(%d, %d, %d) = [%d, %d), want [%d, %d)",
					tt.total, tt.page, tt.pageSize, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
