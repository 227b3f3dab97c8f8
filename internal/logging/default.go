package logging

import "sync"

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewWriterLogger("mapeditor", discard{}, ERROR+1)
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// InitDefaultLogger инициализирует логгер по умолчанию
func InitDefaultLogger(component, dir string, level LogLevel) error {
	l, err := NewLogger(component, dir)
	if err != nil {
		return err
	}
	l.SetLevels(level, TRACE)
	SetDefault(l)
	return nil
}

// SetDefault заменяет логгер по умолчанию
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default возвращает логгер по умолчанию
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// CloseDefaultLogger закрывает логгер по умолчанию
func CloseDefaultLogger() {
	_ = Default().Close()
}

func Trace(format string, args ...interface{}) { Default().Trace(format, args...) }
func Debug(format string, args ...interface{}) { Default().Debug(format, args...) }
func Info(format string, args ...interface{})  { Default().Info(format, args...) }
func Warn(format string, args ...interface{})  { Default().Warn(format, args...) }
func Error(format string, args ...interface{}) { Default().Error(format, args...) }
