package logging

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	impl struct {
		name  string
		level AtomicLevel
		inUTC bool

		appenders []Appender
	}

	// LogEntry embeds a zapcore Entry and slice of Fields.
	LogEntry struct {
		zapcore.Entry
		fields []zapcore.Field
	}
)

var errUnpairedKey = errors.New("unpaired log key")

func (imp *impl) newEntry(level Level, msg string) *LogEntry {
	entry := &LogEntry{}
	entry.Time = time.Now()
	entry.LoggerName = imp.name
	entry.Caller = getCaller()
	entry.Level = level.AsZap()
	entry.Message = msg
	return entry
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}

	return &impl{
		name:      newName,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var errs error
	for _, appender := range imp.appenders {
		errs = multierr.Append(errs, appender.Sync())
	}
	return errs
}

// AsZap builds a zap logger that tees into every appender that is also a zapcore.Core.
func (imp *impl) AsZap() *zap.SugaredLogger {
	var cores []zapcore.Core
	for _, appender := range imp.appenders {
		if core, ok := appender.(zapcore.Core); ok {
			cores = append(cores, core)
		}
	}
	if len(cores) == 0 {
		return zap.NewNop().Sugar()
	}
	leveled, err := zapcore.NewIncreaseLevelCore(zapcore.NewTee(cores...), imp.level.Get().AsZap())
	if err != nil {
		leveled = zapcore.NewTee(cores...)
	}
	return zap.New(leveled, zap.AddCaller()).Sugar().Named(imp.name)
}

func (imp *impl) shouldLog(logLevel Level) bool {
	return logLevel >= imp.level.Get()
}

func (imp *impl) log(entry *LogEntry) {
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}

	for _, appender := range imp.appenders {
		if err := appender.Write(entry.Entry, entry.fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

// emit builds and writes one entry if level is enabled. msg is only evaluated for enabled levels.
func (imp *impl) emit(level Level, msg func() string, keysAndValues []interface{}) {
	if !imp.shouldLog(level) {
		return
	}
	entry := imp.newEntry(level, msg())
	entry.fields = fieldsFromPairs(keysAndValues)
	imp.log(entry)
}

// fieldsFromPairs pairs up keysAndValues as zap fields. A trailing key with no value is kept with
// an error in its place.
func fieldsFromPairs(keysAndValues []interface{}) []zapcore.Field {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errUnpairedKey))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func sprint(args []interface{}) func() string {
	return func() string { return fmt.Sprint(args...) }
}

func sprintf(template string, args []interface{}) func() string {
	return func() string { return fmt.Sprintf(template, args...) }
}

func constant(msg string) func() string {
	return func() string { return msg }
}

func (imp *impl) Debug(args ...interface{}) { imp.emit(DEBUG, sprint(args), nil) }

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.emit(DEBUG, sprintf(template, args), nil)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.emit(DEBUG, constant(msg), keysAndValues)
}

func (imp *impl) Info(args ...interface{}) { imp.emit(INFO, sprint(args), nil) }

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.emit(INFO, sprintf(template, args), nil)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.emit(INFO, constant(msg), keysAndValues)
}

func (imp *impl) Warn(args ...interface{}) { imp.emit(WARN, sprint(args), nil) }

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.emit(WARN, sprintf(template, args), nil)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.emit(WARN, constant(msg), keysAndValues)
}

func (imp *impl) Error(args ...interface{}) { imp.emit(ERROR, sprint(args), nil) }

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.emit(ERROR, sprintf(template, args), nil)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.emit(ERROR, constant(msg), keysAndValues)
}

func getCaller() zapcore.EntryCaller {
	var ok bool
	var entryCaller zapcore.EntryCaller
	const skipToLogCaller = 4
	entryCaller.PC, entryCaller.File, entryCaller.Line, ok = runtime.Caller(skipToLogCaller)
	if !ok {
		return entryCaller
	}
	entryCaller.Defined = true
	if runtimeFunc := runtime.FuncForPC(entryCaller.PC); runtimeFunc != nil {
		entryCaller.Function = runtimeFunc.Name()
	}

	return entryCaller
}
