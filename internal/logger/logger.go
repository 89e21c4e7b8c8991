package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

var logFile io.WriteCloser

// Init installs the process logger. When file is set, output is also written
// to a size-rotated log file.
func Init(debug bool, file string) {
	level := slog.LevelInfo
	if debug || os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	Close()
	var out io.Writer = os.Stdout
	if file != "" {
		logFile = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out = io.MultiWriter(os.Stdout, logFile)
	}

	Logger = slog.New(slog.NewTextHandler(out, opts))
	slog.SetDefault(Logger)
}

// Close releases the rotated log file, if any.
func Close() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
