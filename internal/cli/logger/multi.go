package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// MultiHandler sends every record to all handlers. Errors of any handler
// are reported through the first one.
type MultiHandler struct {
	*slog.MultiHandler

	h0      slog.Handler
	closers []io.Closer
}

var _ slog.Handler = (*MultiHandler)(nil)

func NewMultiHandler(handlers []slog.Handler) *MultiHandler {
	return &MultiHandler{
		MultiHandler: slog.NewMultiHandler(handlers...),
		h0:           handlers[0],
	}
}

func (self *MultiHandler) WithClosers(closers []io.Closer) *MultiHandler {
	self.closers = closers
	return self
}

func (self *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	err := self.MultiHandler.Handle(ctx, r)
	if err == nil {
		return nil
	}

	err = fmt.Errorf("logger: one of handlers failed: %w", err)
	self.logInternalErr(ctx, err)
	return err
}

func (self *MultiHandler) logInternalErr(ctx context.Context, err error) {
	if !self.h0.Enabled(ctx, slog.LevelError) {
		return
	}

	r := slog.NewRecord(time.Now(), slog.LevelError, "logger: unable log message",
		0)
	r.AddAttrs(slog.Any("error", err))
	_ = self.h0.Handle(ctx, r)
}

// Close closes every closer, given to WithClosers.
func (self *MultiHandler) Close() error {
	var errs []error
	for _, closer := range self.closers {
		if closer != nil {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
