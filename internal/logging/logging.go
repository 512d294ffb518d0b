// Package logging builds named zap loggers whose levels can be changed at runtime.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfg = zap.Config{
		Level:       zap.NewAtomicLevelAt(zap.InfoLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	leveler = &levelSetter{
		levelers: make(map[string]zap.AtomicLevel),
		fallback: zap.InfoLevel,
	}
)

type levelSetter struct {
	levelers map[string]zap.AtomicLevel
	fallback zapcore.Level // level of names without their own entry
	mu       sync.RWMutex
}

func (lw *levelSetter) SetLevel(name string, level zapcore.Level) {
	_ = lw.setLevel(name, level)
}

func (lw *levelSetter) GetLevel(name string) zapcore.Level {
	lw.mu.RLock()
	defer lw.mu.RUnlock()

	if l, ok := lw.levelers[name]; ok {
		return l.Level()
	}
	return lw.fallback
}

// setLevel keeps an existing AtomicLevel so loggers already built from it follow the change.
func (lw *levelSetter) setLevel(name string, level zapcore.Level) zap.AtomicLevel {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	l, ok := lw.levelers[name]
	if !ok {
		l = zap.NewAtomicLevelAt(level)
		lw.levelers[name] = l
	}
	l.SetLevel(level)
	return l
}

// setAll moves every known logger and the fallback to level.
func (lw *levelSetter) setAll(level zapcore.Level) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	lw.fallback = level
	for _, l := range lw.levelers {
		l.SetLevel(level)
	}
}

// levelFor returns the AtomicLevel for name, creating it at the fallback
// level if needed.
func (lw *levelSetter) levelFor(name string) zap.AtomicLevel {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	l, ok := lw.levelers[name]
	if !ok {
		l = zap.NewAtomicLevelAt(lw.fallback)
		lw.levelers[name] = l
	}
	return l
}

// Configure applies a level setting such as "debug" or
// "warn,mqtt=debug,controller=info". A bare level applies to every logger;
// name=level entries override it for one logger. Nothing changes if any
// part of the setting is invalid.
func Configure(setting string) error {
	var (
		all    *zapcore.Level
		byName = make(map[string]zapcore.Level)
	)
	for _, part := range strings.Split(setting, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, text, named := strings.Cut(part, "=")
		if !named {
			text = name
		}
		level, err := zapcore.ParseLevel(strings.TrimSpace(text))
		if err != nil {
			return fmt.Errorf("log level %q: %w", part, err)
		}
		if named {
			byName[strings.TrimSpace(name)] = level
		} else {
			all = &level
		}
	}

	if all != nil {
		leveler.setAll(*all)
	}
	for name, level := range byName {
		leveler.SetLevel(name, level)
	}
	return nil
}

// New returns a sugared logger named name.
func New(name string) *zap.SugaredLogger {
	c := cfg
	c.Level = leveler.levelFor(name)
	return zap.Must(c.Build(zap.AddStacktrace(zapcore.PanicLevel))).Named(name).Sugar()
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
