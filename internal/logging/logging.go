// Package logging provides a small structured logger with a background
// writer goroutine, grounded on original_source/include/AsyncLogger.h's
// queue-drain design: callers enqueue a record and return immediately, and
// a single goroutine owns the log file, formats each record through
// log/slog, and rotates the file when the local date rolls over.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// queueDepth bounds how many unwritten records a caller may get ahead of
// the writer goroutine before Log blocks, mirroring AsyncLogger's bounded
// std::queue<LogEntry>.
const queueDepth = 256

// entry is one record enqueued for the writer goroutine, equivalent to
// AsyncLogger::LogEntry.
type entry struct {
	level slog.Level
	msg   string
	attrs []slog.Attr
	at    time.Time
}

// Logger owns a daily-rotating log file on disk, written to exclusively by
// its own background goroutine so callers never block on file IO.
type Logger struct {
	dir      string
	baseName string
	console  bool

	queue chan entry
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// New starts a Logger that writes to <dir>/<baseName>_<YYYY-MM-DD>.log,
// creating dir if needed, and rotates to a new file at each local midnight.
// When console is true, every record is also mirrored to stderr.
func New(dir, baseName string, console bool) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}
	l := &Logger{
		dir:      dir,
		baseName: baseName,
		console:  console,
		queue:    make(chan entry, queueDepth),
		done:     make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Close drains the queue and stops the writer goroutine. Safe to call more
// than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	<-l.done
	return nil
}

func (l *Logger) enqueue(level slog.Level, msg string, attrs []slog.Attr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.queue <- entry{level: level, msg: msg, attrs: attrs, at: time.Now()}
}

// Debug, Info, Warn, and Error enqueue a record at the corresponding level,
// mirroring AsyncLogger's LOG_DEBUG/LOG_INFO/LOG_WARNING/LOG_ERROR macros.
func (l *Logger) Debug(msg string, attrs ...slog.Attr) { l.enqueue(slog.LevelDebug, msg, attrs) }
func (l *Logger) Info(msg string, attrs ...slog.Attr)  { l.enqueue(slog.LevelInfo, msg, attrs) }
func (l *Logger) Warn(msg string, attrs ...slog.Attr)  { l.enqueue(slog.LevelWarn, msg, attrs) }
func (l *Logger) Error(msg string, attrs ...slog.Attr) { l.enqueue(slog.LevelError, msg, attrs) }

// Dispatch records one dispatcher-handled message: the session's uuid, the
// wire message ID it carried, a short outcome verdict ("ok" or a handler's
// error text), and how long the handler took to run. This is the per-message
// audit record the server emits for every frame it dispatches.
func (l *Logger) Dispatch(uuid string, msgID uint16, outcome string, duration time.Duration) {
	l.enqueue(slog.LevelInfo, "dispatch", []slog.Attr{
		slog.String("uuid", uuid),
		slog.Int("msg_id", int(msgID)),
		slog.String("outcome", outcome),
		slog.Duration("duration", duration),
	})
}

// run is the sole goroutine that opens, writes to, and rotates the log
// file; every other method only ever touches the queue.
func (l *Logger) run() {
	defer close(l.done)

	var (
		file    *os.File
		logger  *slog.Logger
		dateTag string
	)
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	openFor := func(dateTag string) (*os.File, *slog.Logger) {
		path := filepath.Join(l.dir, fmt.Sprintf("%s_%s.log", l.baseName, dateTag))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			// Can't open today's file: degrade to stderr only, rather than
			// drop every record until the next rotation.
			return nil, slog.New(slog.NewJSONHandler(os.Stderr, nil))
		}
		return f, slog.New(slog.NewJSONHandler(f, nil))
	}

	for rec := range l.queue {
		tag := rec.at.Format("2006-01-02")
		if tag != dateTag || logger == nil {
			if file != nil {
				file.Close()
			}
			file, logger = openFor(tag)
			dateTag = tag
		}

		logger.LogAttrs(context.Background(), rec.level, rec.msg, rec.attrs...)
		if l.console {
			l.writeConsole(rec)
		}
	}
}

func (l *Logger) writeConsole(rec entry) {
	fmt.Fprintf(os.Stderr, "%s [%s] %s", rec.at.Format("2006-01-02T15:04:05"), rec.level, rec.msg)
	for _, a := range rec.attrs {
		fmt.Fprintf(os.Stderr, " %s=%v", a.Key, a.Value)
	}
	fmt.Fprintln(os.Stderr)
}
