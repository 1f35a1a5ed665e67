package repository

import "errors"

var (
	// ErrUserExists is returned when a username or email is already taken.
	ErrUserExists = errors.New("user with this username or email already exists")
	// ErrAlreadySubmitted is returned when a (user, exam) pair already has a submission.
	ErrAlreadySubmitted = errors.New("exam already submitted")
	// ErrSubmissionNotFound is returned when no submission exists for a (user, exam) pair.
	ErrSubmissionNotFound = errors.New("submission not found")
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"
