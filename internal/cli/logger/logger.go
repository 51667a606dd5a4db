// SPDX-FileCopyrightText: Copyright The Miniflux Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package logger // import "openpodcast.dev/forwarder/internal/cli/logger"

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"openpodcast.dev/forwarder/internal/config"
)

// InitializeDefaultLogger configures slog default logger from
// config.Opts.Logging. Returned closer closes log files.
func InitializeDefaultLogger() (io.Closer, error) {
	logs := config.Opts.Logging()
	closers := make([]io.Closer, len(logs))
	handlers := make([]slog.Handler, len(logs))

	for i := range logs {
		h, closer, err := handlerFromConfig(&logs[i])
		if err != nil {
			return nil, err
		}
		closers[i] = closer
		handlers[i] = h
	}

	h := NewMultiHandler(handlers).WithClosers(closers)
	if len(handlers) == 1 {
		slog.SetDefault(slog.New(handlers[0]))
	} else {
		slog.SetDefault(slog.New(h))
	}
	return h, nil
}

func handlerFromConfig(c *config.Log) (slog.Handler, io.Closer, error) {
	w, closer, err := parseLogFile(c.LogFile)
	if err != nil {
		return nil, nil, err
	}
	h := parseFormat(w, c.LogFormat, c.LogLevel, c.LogDateTime)
	return h, closer, nil
}

func parseLogFile(logFile string) (io.Writer, io.Closer, error) {
	switch logFile {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}

	f, err := NewLogFile(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"unable to open log file %q: %w", logFile, err)
	}
	return f, f, nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func hideTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.Attr{}
	}
	return a
}

func parseFormat(w io.Writer, format, level string, logTime bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if !logTime {
		opts.ReplaceAttr = hideTime
	}

	switch format {
	case "auto":
		if isTerminal(w) {
			return NewHumanTextHandler(w, opts, logTime).WithColors()
		}
	case "human":
		return NewHumanTextHandler(w, opts, logTime)
	case "json":
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
