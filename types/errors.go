package types

import (
	"context"
	"errors"
	"fmt"
)

// Process exit codes, one per error family
const (
	ExitOK     = 0
	ExitUsage  = 1 // Bad flags, parameters file or worker count
	ExitInput  = 2 // Seed image could not be loaded or has an unusable shape
	ExitOutput = 3 // Result image could not be written
	ExitComm   = 4 // A worker transfer or reduction did not complete
	ExitCancel = 5 // Interrupted or past its deadline before finishing
)

type IOOp string

const (
	OpLoad  IOOp = "load"
	OpStore IOOp = "store"
)

// IOError is a failure to open, read or write a file
type IOError struct {
	Op       IOOp
	Filename string
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Filename, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FormatError is a readable file whose contents can not be decoded
type FormatError struct {
	Filename string
	Msg      string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format %s: %s", e.Filename, e.Msg)
}

type DimensionError struct {
	Width, Height int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("grid %dx%d is smaller than the minimum bordered size 3x3",
		e.Width, e.Height)
}

type IndexError struct {
	Row, Col      int
	Width, Height int
	Write         bool
}

func (e *IndexError) Error() string {
	if e.Write {
		return fmt.Sprintf("write at (%d,%d) outside interior rows [1,%d] cols [1,%d]",
			e.Row, e.Col, e.Height-2, e.Width-2)
	}
	return fmt.Sprintf("read at (%d,%d) outside grid %dx%d",
		e.Row, e.Col, e.Width, e.Height)
}

// CommunicationFailure names the operation and the pair of workers involved
// in a transfer that did not complete.
type CommunicationFailure struct {
	Op        string
	Rank      int
	Peer      int // -1 for collective operations
	Tag       int
	Iteration int
	Err       error
}

func (e *CommunicationFailure) Error() string {
	if e.Peer < 0 {
		return fmt.Sprintf("rank %d: %s (tag %d) at iteration %d: %v",
			e.Rank, e.Op, e.Tag, e.Iteration, e.Err)
	}
	return fmt.Sprintf("rank %d <-> rank %d: %s (tag %d) at iteration %d: %v",
		e.Rank, e.Peer, e.Op, e.Tag, e.Iteration, e.Err)
}

func (e *CommunicationFailure) Unwrap() error { return e.Err }

func ExitCode(err error) int {
	var (
		ioErr   *IOError
		fmtErr  *FormatError
		dimErr  *DimensionError
		commErr *CommunicationFailure
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitCancel
	case errors.As(err, &commErr):
		return ExitComm
	case errors.As(err, &ioErr):
		if ioErr.Op == OpStore {
			return ExitOutput
		}
		return ExitInput
	case errors.As(err, &fmtErr), errors.As(err, &dimErr):
		return ExitInput
	default:
		return ExitUsage
	}
}
