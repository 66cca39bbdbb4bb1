package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps logrus with file rotation. Log lines go to both the
// rotated file and stdout.
type Logger struct {
	*logrus.Logger
}

// New creates a Logger writing to dir/airalert.log at the given level.
func New(dir, level string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "airalert.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
	}

	l := logrus.New()
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(io.MultiWriter(os.Stdout, rotator))

	return &Logger{Logger: l}, nil
}
