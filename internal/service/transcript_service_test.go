package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTranscriptService_Locate(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "223"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "223", "2231007_summer_transcript.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewTranscriptService(dir, "summer")

	tr, err := svc.Locate("223", "2231007")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if tr.FileName != "2231007_summer_transcript.pdf" {
		t.Errorf("FileName = %q", tr.FileName)
	}

	tests := []struct {
		name     string
		cohort   string
		username string
	}{
		{"other cohort", "224", "2231007"},
		{"missing file", "223", "2231008"},
		{"traversal in cohort", "..", "2231007"},
		{"separator in username", "223", "../223/2231007"},
		{"empty username", "223", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Locate(tt.cohort, tt.username); !errors.Is(err, ErrTranscriptNotFound) {
				t.Errorf("Locate() error = %v, want ErrTranscriptNotFound", err)
			}
		})
	}
}
