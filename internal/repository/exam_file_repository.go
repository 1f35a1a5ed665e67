package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

var (
	// ErrExamNotFound is returned when no definition file exists for a key.
	ErrExamNotFound = errors.New("exam not found")
	// ErrInvalidExamDocument is returned when a definition violates the schema.
	ErrInvalidExamDocument = errors.New("invalid exam document")
)

// ExamFormat is the encoding of an exam definition file.
type ExamFormat string

const (
	ExamFormatJSON ExamFormat = "json"
	ExamFormatYAML ExamFormat = "yaml"
)

// examExtensions is the lookup order when several files share a key.
var examExtensions = []struct {
	ext    string
	format ExamFormat
}{
	{".json", ExamFormatJSON},
	{".yaml", ExamFormatYAML},
	{".yml", ExamFormatYAML},
}

// ExamDocument is the raw content of one exam definition file.
type ExamDocument struct {
	Key    string
	Format ExamFormat
	Data   []byte
}

// Parse validates the document against the exam schema and decodes it.
func (d *ExamDocument) Parse() (*grading.Exam, error) {
	return ParseExamDocument(d.Format, d.Data)
}

// ParseExamDocument validates raw bytes of the given format and decodes them
// into an exam. Grading preconditions are checked as well.
func ParseExamDocument(format ExamFormat, data []byte) (*grading.Exam, error) {
	var (
		exam *grading.Exam
		err  error
	)
	switch format {
	case ExamFormatYAML:
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidExamDocument, err)
		}
		if err := validateExamDocument(gojsonschema.NewGoLoader(generic)); err != nil {
			return nil, err
		}
		exam, err = grading.ParseYAML(data)
	default:
		if err := validateExamDocument(gojsonschema.NewBytesLoader(data)); err != nil {
			return nil, err
		}
		exam, err = grading.ParseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExamDocument, err)
	}
	if err := grading.Validate(exam); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExamDocument, err)
	}
	return exam, nil
}

// ExamFileRepository reads exam definitions from a directory. File stems are
// exam keys of the form <cohort>_<name>.
type ExamFileRepository struct {
	dir string
}

// NewExamFileRepository creates a repository rooted at dir.
func NewExamFileRepository(dir string) *ExamFileRepository {
	return &ExamFileRepository{dir: dir}
}

// Dir returns the root directory.
func (r *ExamFileRepository) Dir() string {
	return r.dir
}

// Read loads the raw definition of key.
func (r *ExamFileRepository) Read(key string) (*ExamDocument, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return nil, ErrExamNotFound
	}

	for _, e := range examExtensions {
		data, err := os.ReadFile(filepath.Join(r.dir, key+e.ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read exam %s: %w", key, err)
		}
		return &ExamDocument{Key: key, Format: e.format, Data: data}, nil
	}
	return nil, ErrExamNotFound
}

// Keys lists every exam key in the directory, sorted. A missing directory
// yields an empty list.
func (r *ExamFileRepository) Keys() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	seen := make(map[string]struct{})
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, e := range examExtensions {
			if !strings.HasSuffix(name, e.ext) {
				continue
			}
			key := strings.TrimSuffix(name, e.ext)
			if _, dup := seen[key]; !dup && key != "" && !strings.HasPrefix(key, ".") {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
			break
		}
	}
	sort.Strings(keys)
	return keys, nil
}
