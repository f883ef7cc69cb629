package generator

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("generator already running")

// shutdownRaceMessages are failure signatures produced when the local
// observer loses its connection or context while a unit of work is
// still in flight. Substring matching is brittle; the set lives here,
// behind isShutdownRace, so it can be tuned per environment or replaced
// with typed inspection without touching call sites.
var shutdownRaceMessages = []string{
	"connection is closing",
	"transport is closing",
	"context canceled",
	"context deadline exceeded",
}

// isShutdownRace reports whether an await failure looks like the
// observer shutting down rather than the remote unit of work failing.
// Such work is presumed to have finished on the engine side and is
// counted as completed, keeping shutdown noise out of the pass/fail
// statistics.
func isShutdownRace(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Canceled, codes.Unavailable, codes.DeadlineExceeded:
			return true
		}
	}

	msg := err.Error()
	for _, signature := range shutdownRaceMessages {
		if strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}
