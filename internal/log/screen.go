package log

import (
	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

// ScreenLog writes to stdout through zerolog's console writer, colourised
// via go-colorable so ANSI sequences render correctly on Windows consoles
// too — the same combination sylr.dev/fix wires around a quickfixgo
// session.
type ScreenLog struct {
	logger zerolog.Logger
}

// NewScreenLog builds a ScreenLog tagged with sessionID for every line.
func NewScreenLog(sessionID string) *ScreenLog {
	writer := zerolog.ConsoleWriter{Out: colorable.NewColorableStdout()}
	logger := zerolog.New(writer).With().Timestamp().Str("session", sessionID).Logger()
	return &ScreenLog{logger: logger}
}

func (s *ScreenLog) OnIncoming(raw []byte) {
	s.logger.Debug().Str("direction", "in").Bytes("raw", raw).Msg("fix message")
}

func (s *ScreenLog) OnOutgoing(raw []byte) {
	s.logger.Debug().Str("direction", "out").Bytes("raw", raw).Msg("fix message")
}

func (s *ScreenLog) OnEvent(msg string) {
	s.logger.Info().Msg(msg)
}

func (s *ScreenLog) OnEventf(format string, args ...interface{}) {
	s.logger.Info().Msgf(format, args...)
}

// ScreenFactory hands out one ScreenLog per session.
type ScreenFactory struct{}

func (ScreenFactory) SessionLog(sessionID string) Log { return NewScreenLog(sessionID) }
