package main

import (
	"errors"

	"github.com/efebarandurmaz/castgraph/internal/config"
	"github.com/efebarandurmaz/castgraph/internal/export"
	"github.com/efebarandurmaz/castgraph/internal/graph"
	"github.com/efebarandurmaz/castgraph/internal/rowsource"
	"github.com/efebarandurmaz/castgraph/internal/temporal"
)

// Process exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitConfig   = 2
	exitInput    = 3
	exitInternal = 4
)

// errConfig marks flag, file and environment problems.
var errConfig = errors.New("configuration error")

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var openErr *rowsource.OpenError
	switch {
	case errors.Is(err, errConfig),
		errors.Is(err, config.ErrMissingInput),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, export.ErrStdoutUnsupported):
		return exitConfig
	case errors.As(err, &openErr):
		return exitInput
	case errors.Is(err, graph.ErrInternalConsistency),
		errors.Is(err, graph.ErrCastTooLarge):
		return exitInternal
	}

	// Failures that crossed a workflow boundary only keep their type name.
	switch temporal.ErrorType(err) {
	case temporal.ErrTypeUnknownFormat, temporal.ErrTypeStdoutUnsupported:
		return exitConfig
	case temporal.ErrTypeInputOpen:
		return exitInput
	case temporal.ErrTypeInternalConsistency, temporal.ErrTypeCastTooLarge:
		return exitInternal
	}
	return exitFailure
}
