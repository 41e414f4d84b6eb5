package models

import (
	"fmt"
	"strings"
)

// ErrorType represents different categories of build failures
type ErrorType int

const (
	// ErrConfig is an unrecognized distro family, architecture or flag
	// combination. Fatal, no retry; it means a programming or config bug.
	ErrConfig ErrorType = iota
	// ErrExternalTool is a nonzero exit from a build, index or sign tool.
	// Fatal for the enclosing (distro, arch) pair only.
	ErrExternalTool
	// ErrFileOp is a filesystem failure.
	ErrFileOp
	// ErrNetwork is a tarball download failure. Fatal, no automatic retry.
	ErrNetwork
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrConfig:
		return "Config"
	case ErrExternalTool:
		return "ExternalTool"
	case ErrFileOp:
		return "FileOp"
	case ErrNetwork:
		return "Network"
	default:
		return "Unknown"
	}
}

// BuildError represents an error during package or repository construction,
// tagged with the (distro, arch) pair it aborted when that is known.
type BuildError struct {
	Type   ErrorType
	Distro string
	Arch   string
	Err    error
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.Distro != "" {
		return fmt.Sprintf("[%s] %s/%s: %v", e.Type, e.Distro, e.Arch, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *BuildError) Unwrap() error {
	return e.Err
}

// ExternalToolError reports a failed subprocess with enough context to rerun
// it by hand: the working directory and the exact command line.
type ExternalToolError struct {
	Dir    string
	Args   []string
	Stderr string
	Err    error
}

// Error implements the error interface
func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("in %s, running %q: %v", e.Dir, strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *ExternalToolError) Unwrap() error {
	return e.Err
}
