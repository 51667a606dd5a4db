package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
)

var bufPool = sync.Pool{
	New: func() any { return bytes.NewBuffer(make([]byte, 0, 1024)) },
}

// To reduce peak allocation, return only smaller buffers to the pool.
const maxBufferSize = 16 << 10

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\x1b[90m",
	slog.LevelInfo:  "\x1b[32m",
	slog.LevelWarn:  "\x1b[33m",
	slog.LevelError: "\x1b[31m",
}

const colorReset = "\x1b[0m"

// HumanTextHandler writes "LEVEL message key=value..." lines, optionally
// prefixed by log.LstdFlags date and time.
type HumanTextHandler struct {
	logTime bool
	colors  bool
	w       io.Writer
	opts    slog.HandlerOptions

	// attrs replays WithAttrs and WithGroup on the text handler of every
	// record.
	attrs []func(h slog.Handler) slog.Handler
	mu    *sync.Mutex
}

var _ slog.Handler = (*HumanTextHandler)(nil)

func NewHumanTextHandler(w io.Writer, opts *slog.HandlerOptions,
	logTime bool,
) *HumanTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &HumanTextHandler{
		logTime: logTime,
		w:       w,
		opts:    *opts,
		mu:      new(sync.Mutex),
	}
}

// WithColors enables ANSI colors of levels.
func (self *HumanTextHandler) WithColors() *HumanTextHandler {
	h := *self
	h.colors = true
	return &h
}

func (self *HumanTextHandler) Enabled(_ context.Context, level slog.Level,
) bool {
	minLevel := slog.LevelInfo
	if self.opts.Level != nil {
		minLevel = self.opts.Level.Level()
	}
	return level >= minLevel
}

func (self *HumanTextHandler) Handle(ctx context.Context, r slog.Record) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	b := bufPool.Get().(*bytes.Buffer)
	defer func() {
		if b.Cap() <= maxBufferSize {
			b.Reset()
			bufPool.Put(b)
		}
	}()

	if err := self.writePrefix(b, &r); err != nil {
		return err
	}

	if err := self.textHandler(b).Handle(ctx, r); err != nil {
		return fmt.Errorf("logger: failed slog handler: %w", err)
	}

	// Discard trailing '\n', added by slog.TextHandler, and trailing ' ' added
	// by writePrefix.
	b.Truncate(len(bytes.TrimSpace(b.Bytes())))
	b.WriteByte('\n')

	if _, err := b.WriteTo(self.w); err != nil {
		return fmt.Errorf("logger: failed write formatted entry: %w", err)
	}
	return nil
}

func (self *HumanTextHandler) textHandler(w io.Writer) slog.Handler {
	opts := self.opts
	opts.ReplaceAttr = self.replace
	var h slog.Handler = slog.NewTextHandler(w, &opts)
	for _, fn := range self.attrs {
		h = fn(h)
	}
	return h
}

func (self *HumanTextHandler) replace(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey, slog.LevelKey, slog.MessageKey:
			return slog.Attr{}
		}
	}
	if self.opts.ReplaceAttr != nil {
		return self.opts.ReplaceAttr(groups, a)
	}
	return a
}

func (self *HumanTextHandler) writePrefix(b *bytes.Buffer, r *slog.Record,
) error {
	if self.logTime {
		// output log.LstdFlags
		stdLog := log.New(b, "", log.LstdFlags)
		if err := stdLog.Output(2, ""); err != nil {
			return fmt.Errorf("logger: write prefix to log.Output: %w", err)
		}
		// Discard last byte (\n), added by log.Output.
		b.Truncate(b.Len() - 1)
	}

	if color, ok := levelColors[r.Level]; ok && self.colors {
		b.WriteString(color)
		b.WriteString(r.Level.String())
		b.WriteString(colorReset)
	} else {
		b.WriteString(r.Level.String())
	}
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteByte(' ')
	return nil
}

func (self *HumanTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return self.with(func(h slog.Handler) slog.Handler {
		return h.WithAttrs(attrs)
	})
}

func (self *HumanTextHandler) WithGroup(name string) slog.Handler {
	return self.with(func(h slog.Handler) slog.Handler {
		return h.WithGroup(name)
	})
}

func (self *HumanTextHandler) with(fn func(h slog.Handler) slog.Handler,
) *HumanTextHandler {
	h := *self
	h.attrs = append(self.attrs[:len(self.attrs):len(self.attrs)], fn)
	return &h
}
