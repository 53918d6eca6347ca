package domain

import "errors"

var (
	// ErrClassroomNotFound is returned when classroom metadata cannot be loaded.
	ErrClassroomNotFound = errors.New("classroom not found")
	// ErrSessionNotFound is returned when a classroom session has not been initialized.
	ErrSessionNotFound = errors.New("classroom session not found")
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in classroom")
	// ErrNoActiveQuestion is returned when an operation targets a question that is
	// no longer (or was never) the active one.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrQuestionActive is returned when a new question is created while one is live.
	ErrQuestionActive = errors.New("a question is already active")
	// ErrInvalidQuestion is returned when a question draft fails validation.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrOptionOutOfRange is returned when a submitted option index does not exist.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrAlreadyAnswered is returned on a second submission for the same
	// (question, student) pair. Transports map it to HTTP 409 with the stable
	// machine code "duplicate_answer"; clients treat it as success-equivalent.
	ErrAlreadyAnswered = errors.New("answer already recorded")
	// ErrSpinInProgress is returned when a roulette spin overlaps another, or a
	// reward action arrives before the spin settles.
	ErrSpinInProgress = errors.New("roulette spin in progress")
	// ErrEmptyRoster is returned when a spin starts with nobody to pick.
	ErrEmptyRoster = errors.New("roster is empty")
	// ErrInvalidVerdict is returned for a verdict other than correct/incorrect.
	ErrInvalidVerdict = errors.New("invalid verdict")
)
