// Package log wires zerolog for the library. Because AcornDB embeds into a
// host application that usually has logging of its own, every line the
// library emits is stamped with a library field at construction time, so
// the host can filter or redirect AcornDB's output wholesale; subsystems
// then narrow the scope further with the With* helpers
// (component/collection/peer/backend).
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// defaultLibraryTag is stamped on every line unless Config.Component
// overrides it.
const defaultLibraryTag = "acorndb"

// Logger is the library-wide base logger. Replaced by Init; usable before
// Init is called (e.g. from package-level var initializers in tests).
var Logger = Config{}.build()

// Level names a minimum severity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config describes how the library logs.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer

	// Component overrides the library field stamped on every line, for
	// hosts embedding more than one AcornDB instance.
	Component string
}

// Init replaces the library-wide logger and minimum level.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(cfg.Level.zerolog())
	Logger = cfg.build()
}

func (cfg Config) build() zerolog.Logger {
	tag := cfg.Component
	if tag == "" {
		tag = defaultLibraryTag
	}
	return zerolog.New(cfg.writer()).With().
		Timestamp().
		Str("library", tag).
		Logger()
}

func (cfg Config) writer() io.Writer {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.JSONOutput {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}

// WithComponent narrows the base logger to a named subsystem.
func WithComponent(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}

// WithCollection scopes the base logger to a named Collection.
func WithCollection(name string) *zerolog.Logger {
	l := Logger.With().Str("collection", name).Logger()
	return &l
}

// WithPeer scopes the base logger to a replication peer.
func WithPeer(peerID string) *zerolog.Logger {
	l := Logger.With().Str("peer_id", peerID).Logger()
	return &l
}

// WithBackend scopes the base logger to a storage backend instance.
func WithBackend(kind string) *zerolog.Logger {
	l := Logger.With().Str("backend", kind).Logger()
	return &l
}
