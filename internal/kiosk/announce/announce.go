// Package announce is the seam where spoken feedback attaches. The
// kiosk is operated without looking at the screen, so every
// user-facing message is also handed to a Speaker; this module only
// defines the contract and a logging stand-in, real TTS lives outside.
package announce

import (
	"context"

	"github.com/jcastellanos/comedor-kiosk/internal/logging"
)

// Speaker voices a message to the operator. Implementations must not
// block the caller; Say is invoked from the issuance and sync paths.
type Speaker interface {
	Say(ctx context.Context, message string)
}

// LogSpeaker writes announcements to the structured log. Used as the
// default Speaker and in tests.
type LogSpeaker struct {
	log logging.Logger
}

func NewLogSpeaker(log logging.Logger) *LogSpeaker {
	return &LogSpeaker{log: log}
}

func (s *LogSpeaker) Say(ctx context.Context, message string) {
	s.log.Info(ctx, "announce", "message", message)
}

// Silent discards announcements.
type Silent struct{}

func (Silent) Say(context.Context, string) {}
