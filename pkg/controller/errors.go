package controller

import "errors"

var (
	// ErrInvalidTransition indicates a state transition not allowed by the table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyStarted indicates a second Start* call on the same mission.
	ErrAlreadyStarted = errors.New("mission execution already started")

	// ErrNotStarted indicates an operation that requires a started mission.
	ErrNotStarted = errors.New("mission execution not started")

	// ErrNoAnalyzer indicates AnalyzeRequirement was called without an analyzer.
	ErrNoAnalyzer = errors.New("no analyzer configured")
)
