package log

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// FileLog appends newline-delimited JSON log events to one file per
// session under a configured directory, the on-disk counterpart to
// ScreenLog.
type FileLog struct {
	f      *os.File
	logger zerolog.Logger
}

// NewFileLog opens (creating if necessary) dir/sessionID.log for append.
func NewFileLog(dir, sessionID string) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "log: mkdir")
	}
	path := filepath.Join(dir, sessionID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "log: open")
	}
	logger := zerolog.New(f).With().Timestamp().Str("session", sessionID).Logger()
	return &FileLog{f: f, logger: logger}, nil
}

func (l *FileLog) OnIncoming(raw []byte) {
	l.logger.Info().Str("direction", "in").Bytes("raw", raw).Msg("fix message")
}

func (l *FileLog) OnOutgoing(raw []byte) {
	l.logger.Info().Str("direction", "out").Bytes("raw", raw).Msg("fix message")
}

func (l *FileLog) OnEvent(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *FileLog) OnEventf(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Close closes the underlying file handle.
func (l *FileLog) Close() error { return l.f.Close() }

// FileFactory hands out one FileLog per session, all rooted at Dir.
type FileFactory struct {
	Dir string
}

func (f FileFactory) SessionLog(sessionID string) Log {
	l, err := NewFileLog(f.Dir, sessionID)
	if err != nil {
		return NopLog{}
	}
	return l
}
