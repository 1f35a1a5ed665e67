package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrTranscriptNotFound is returned when no transcript file exists.
var ErrTranscriptNotFound = errors.New("transcript not found")

// Transcript locates a downloadable transcript file.
type Transcript struct {
	Path     string
	FileName string
}

// TranscriptService resolves per-student transcript files stored as
// <dir>/<cohort>/<username>_<term>_transcript.pdf.
type TranscriptService struct {
	dir  string
	term string
}

// NewTranscriptService creates a new TranscriptService.
func NewTranscriptService(dir, term string) *TranscriptService {
	return &TranscriptService{dir: dir, term: term}
}

// Locate returns the transcript of a student.
func (s *TranscriptService) Locate(cohort, username string) (*Transcript, error) {
	if !safePathSegment(cohort) || !safePathSegment(username) {
		return nil, ErrTranscriptNotFound
	}

	name := fmt.Sprintf("%s_%s_transcript.pdf", username, s.term)
	path := filepath.Join(s.dir, cohort, name)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrTranscriptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat transcript: %w", err)
	}
	if info.IsDir() {
		return nil, ErrTranscriptNotFound
	}
	return &Transcript{Path: path, FileName: name}, nil
}

func safePathSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
