package logger

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ranitraj/instaLens/internal/config"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to rotating files and stdout/stderr.
type Logger struct {
	sugar  *zap.SugaredLogger
	files  map[string]*lumberjack.Logger
	logDir string
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create log directory %s", cfg.LogDirectory)
	}

	l := &Logger{
		logDir: cfg.LogDirectory,
		files:  make(map[string]*lumberjack.Logger),
	}
	l.sugar = zap.New(l.buildCore(cfg.Debug), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	return l, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar(), files: map[string]*lumberjack.Logger{}}
}

// NewObserved returns a Logger that records entries in memory, for tests.
func NewObserved() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{sugar: zap.New(core).Sugar(), files: map[string]*lumberjack.Logger{}}, logs
}

// buildCore tees a console core with one JSON core per level file.
func (l *Logger) buildCore(debug bool) zapcore.Core {
	consoleLevel := zapcore.InfoLevel
	if debug {
		consoleLevel = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCfg.EncodeCaller = zapcore.ShortCallerEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)

	fileCfg := zap.NewProductionEncoderConfig()
	fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEncoder := zapcore.NewJSONEncoder(fileCfg)

	onlyLevel := func(lvl zapcore.Level) zap.LevelEnablerFunc {
		return func(l zapcore.Level) bool { return l == lvl }
	}

	return zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= consoleLevel && lvl < zapcore.ErrorLevel
		})),
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), zapcore.ErrorLevel),
		zapcore.NewCore(fileEncoder, l.openLogFile(InfoFile), onlyLevel(zapcore.InfoLevel)),
		zapcore.NewCore(fileEncoder, l.openLogFile(WarningFile), onlyLevel(zapcore.WarnLevel)),
		zapcore.NewCore(fileEncoder, l.openLogFile(ErrorFile), zapcore.ErrorLevel),
	)
}

// openLogFile returns a rotating writer for a log file.
func (l *Logger) openLogFile(filename string) zapcore.WriteSyncer {
	w := &lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, filename),
		MaxSize:    10,
		MaxBackups: 3,
		Compress:   true,
	}
	l.files[filename] = w
	return zapcore.AddSync(w)
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Named returns a child logger whose entries carry the given component name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name), files: l.files, logDir: l.logDir}
}

// Dir returns the directory the level files are written to.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if _, ok := l.files[fileName]; !ok {
		return errors.Errorf("unknown log file %q", fileName)
	}
	// lumberjack appends, so truncating in place is safe while it holds the file open.
	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to truncate %s", fileName)
	}
	l.Info("File content has been cleared: %s", fileName)
	return nil
}

// Sync flushes buffered entries and closes the level files.
func (l *Logger) Sync() error {
	err := l.sugar.Sync()
	for _, w := range l.files {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
