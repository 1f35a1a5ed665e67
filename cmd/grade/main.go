package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/logger"
	"github.com/stemsi/exstem-portal/internal/repository"
)

func main() {
	var (
		examPath    string
		answersPath string
		review      bool
	)
	flag.StringVar(&examPath, "exam", "", "Exam definition file (.json, .yaml or .yml)")
	flag.StringVar(&answersPath, "answers", "", "Answer sheet JSON file (default: stdin)")
	flag.BoolVar(&review, "review", false, "Print the full review instead of the score report")
	flag.Parse()

	log := logger.New(os.Stderr, "info", "pretty")

	if examPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: grade -exam exam.json [-answers answers.json] [-review]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	data, err := os.ReadFile(examPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", examPath).Msg("Failed to read exam")
	}
	exam, err := repository.ParseExamDocument(formatOf(examPath), data)
	if err != nil {
		log.Fatal().Err(err).Str("file", examPath).Msg("Invalid exam definition")
	}

	var raw []byte
	if answersPath == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(answersPath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read answers")
	}
	answers, err := grading.DecodeAnswers(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid answer sheet")
	}

	report, err := grading.Grade(exam, answers)
	if err != nil {
		log.Fatal().Err(err).Msg("Grading failed")
	}

	var out any = report
	if review {
		out = grading.BuildReview(exam, answers, report)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func formatOf(path string) repository.ExamFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return repository.ExamFormatYAML
	}
	return repository.ExamFormatJSON
}
