package taskrt

import (
	"encoding/base64"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// zerologEvent adapts a *zerolog.Event to logiface.Event. It is a narrower,
// hand-written version of the logiface/zerolog adapter shape (that adapter
// package's import path has moved across the corpus's own history), pinned
// only against the stable logiface core API and zerolog itself.
type zerologEvent struct {
	logiface.UnimplementedEvent
	z   *zerolog.Event
	lvl logiface.Level
	msg string
}

func (e *zerologEvent) Level() logiface.Level {
	if e == nil {
		return logiface.LevelDisabled
	}
	return e.lvl
}

func (e *zerologEvent) AddField(key string, val any)        { e.z.Interface(key, val) }
func (e *zerologEvent) AddMessage(msg string) bool           { e.msg = msg; return true }
func (e *zerologEvent) AddError(err error) bool              { e.z.Err(err); return true }
func (e *zerologEvent) AddString(key, val string) bool       { e.z.Str(key, val); return true }
func (e *zerologEvent) AddInt(key string, val int) bool      { e.z.Int(key, val); return true }
func (e *zerologEvent) AddBool(key string, val bool) bool    { e.z.Bool(key, val); return true }
func (e *zerologEvent) AddTime(key string, val time.Time) bool {
	e.z.Time(key, val)
	return true
}
func (e *zerologEvent) AddDuration(key string, val time.Duration) bool {
	e.z.Dur(key, val)
	return true
}
func (e *zerologEvent) AddBase64Bytes(key string, val []byte, enc *base64.Encoding) bool {
	e.z.Str(key, enc.EncodeToString(val))
	return true
}

// zerologWriterFactory implements logiface.EventFactory, logiface.Writer,
// and logiface.EventReleaser for *zerologEvent, backed by a single
// zerolog.Logger.
type zerologWriterFactory struct {
	z zerolog.Logger
}

func (f *zerologWriterFactory) NewEvent(level logiface.Level) *zerologEvent {
	z := f.zerologEventForLevel(level)
	if z == nil {
		return nil
	}
	return &zerologEvent{z: z, lvl: level}
}

func (f *zerologWriterFactory) ReleaseEvent(*zerologEvent) {}

func (f *zerologWriterFactory) Write(event *zerologEvent) error {
	event.z.Msg(event.msg)
	return nil
}

func (f *zerologWriterFactory) zerologEventForLevel(level logiface.Level) *zerolog.Event {
	switch level {
	case logiface.LevelTrace:
		return f.z.Trace()
	case logiface.LevelDebug:
		return f.z.Debug()
	case logiface.LevelInformational:
		return f.z.Info()
	case logiface.LevelNotice, logiface.LevelWarning:
		return f.z.Warn()
	case logiface.LevelError, logiface.LevelCritical:
		return f.z.Error()
	case logiface.LevelAlert:
		return f.z.Fatal()
	case logiface.LevelEmergency:
		return f.z.Panic()
	default:
		return nil
	}
}

// logifaceLogger implements Logger on top of a logiface.Logger[*zerologEvent].
type logifaceLogger struct {
	l *logiface.Logger[*zerologEvent]
}

// NewZerologLogger builds a Logger that writes structured events through
// logiface to the given zerolog.Logger.
func NewZerologLogger(z zerolog.Logger) Logger {
	factory := &zerologWriterFactory{z: z}
	l := logiface.New[*zerologEvent](
		logiface.WithLevel[*zerologEvent](logiface.LevelTrace),
		logiface.WithEventFactory[*zerologEvent](factory),
		logiface.WithEventReleaser[*zerologEvent](factory),
		logiface.WithWriter[*zerologEvent](factory),
	)
	return &logifaceLogger{l: l}
}

func applyFields(b *logiface.Builder[*zerologEvent], fields []Field) *logiface.Builder[*zerologEvent] {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			b = b.Str(f.Key, v)
		case error:
			b = b.Err(v)
		case time.Duration:
			b = b.Dur(f.Key, v)
		case time.Time:
			b = b.Time(f.Key, v)
		case bool:
			b = b.Bool(f.Key, v)
		case int:
			b = b.Int(f.Key, v)
		default:
			b = b.Interface(f.Key, v)
		}
	}
	return b
}

func (l *logifaceLogger) Debug(msg string, fields ...Field) {
	applyFields(l.l.Debug(), fields).Log(msg)
}

func (l *logifaceLogger) Info(msg string, fields ...Field) {
	applyFields(l.l.Info(), fields).Log(msg)
}

func (l *logifaceLogger) Warn(msg string, fields ...Field) {
	applyFields(l.l.Warning(), fields).Log(msg)
}

func (l *logifaceLogger) Error(msg string, err error, fields ...Field) {
	b := l.l.Err()
	if err != nil {
		b = b.Err(err)
	}
	applyFields(b, fields).Log(msg)
}
