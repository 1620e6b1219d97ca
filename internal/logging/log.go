// Package logging builds the zap loggers shared by every component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		CallerKey:    "caller",
		MessageKey:   "msg",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
		EncodeName:   zapcore.FullNameEncoder,
	}
}

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return l, errors.Wrapf(err, "log level %q", level)
	}
	return l, nil
}

// New returns a console logger writing to stderr.
func New(level string) (*zap.Logger, error) {
	return NewTo(os.Stderr, level)
}

// NewTo returns a console logger writing to w.
func NewTo(w io.Writer, level string) (*zap.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(w),
		l,
	)
	return zap.New(core, zap.AddCaller()), nil
}

// Room tags log lines with a room id.
func Room(id string) zap.Field { return zap.String("room", id) }

// User tags log lines with a participant id.
func User(id string) zap.Field { return zap.String("user", id) }

// Seq tags log lines with a log sequence number.
func Seq(seq uint64) zap.Field { return zap.Uint64("seq", seq) }
