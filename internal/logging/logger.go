package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает имя уровня без учёта регистра
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// LogDir каталог файлов логов
var LogDir = "logs"

// Logger логгер компонента: консоль и (необязательно) файл
type Logger struct {
	mu              sync.Mutex
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel

	shared  bool // пишет через глобальный логгер
	inherit bool // пороги берутся у глобального логгера
}

// NewLogger создаёт логгер компонента с файлом в LogDir
func NewLogger(component string) (*Logger, error) {
	if err := os.MkdirAll(LogDir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", LogDir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(LogDir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	return &Logger{
		component:       component,
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		fileLogger:      log.New(file, "", log.LstdFlags),
		file:            file,
		minConsoleLevel: INFO,
		minFileLevel:    TRACE,
	}, nil
}

// NewWriterLogger создаёт логгер без файла, пишущий в w
func NewWriterLogger(component string, w io.Writer, level LogLevel) *Logger {
	return &Logger{
		component:       component,
		consoleLogger:   log.New(w, "", log.LstdFlags),
		minConsoleLevel: level,
		minFileLevel:    ERROR,
	}
}

// SetLevels меняет пороги консоли и файла
func (l *Logger) SetLevels(console, file LogLevel) {
	l.mu.Lock()
	l.minConsoleLevel = console
	l.minFileLevel = file
	l.inherit = false
	l.mu.Unlock()
}

// Component возвращает имя компонента
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	prefix := "[" + level.String() + "]"
	if l.component != "" {
		prefix += " [" + l.component + "]"
	}
	message := prefix + " " + fmt.Sprintf(format, args...)

	l.mu.Lock()
	if !l.shared {
		l.emit(level, message, l.minConsoleLevel, l.minFileLevel)
		l.mu.Unlock()
		return
	}
	console, file, inherit := l.minConsoleLevel, l.minFileLevel, l.inherit
	l.mu.Unlock()

	out := current()
	out.mu.Lock()
	defer out.mu.Unlock()
	if inherit {
		console, file = out.minConsoleLevel, out.minFileLevel
	}
	out.emit(level, message, console, file)
}

// emit вызывается под l.mu
func (l *Logger) emit(level LogLevel, message string, console, file LogLevel) {
	if l.fileLogger != nil && level >= file {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && level >= console {
		l.consoleLogger.Println(message)
	}
}

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// Close закрывает файл логгера
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

// Глобальный логгер; до InitDefaultLogger пишет только в консоль
var (
	defaultMu     sync.RWMutex
	defaultLogger = NewWriterLogger("", os.Stdout, INFO)
)

// InitDefaultLogger инициализирует глобальный логгер с файлом
func InitDefaultLogger(component string, consoleLevel LogLevel) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}
	logger.SetLevels(consoleLevel, TRACE)

	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	return nil
}

// SetDefaultLogger заменяет глобальный логгер (удобно в тестах)
func SetDefaultLogger(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// CloseDefaultLogger закрывает файл глобального логгера
func CloseDefaultLogger() error {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	return l.Close()
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Trace логирует сообщение уровня TRACE глобальным логгером
func Trace(format string, args ...interface{}) { current().Trace(format, args...) }

// Debug логирует сообщение уровня DEBUG глобальным логгером
func Debug(format string, args ...interface{}) { current().Debug(format, args...) }

// Info логирует сообщение уровня INFO глобальным логгером
func Info(format string, args ...interface{}) { current().Info(format, args...) }

// Warn логирует сообщение уровня WARN глобальным логгером
func Warn(format string, args ...interface{}) { current().Warn(format, args...) }

// Error логирует сообщение уровня ERROR глобальным логгером
func Error(format string, args ...interface{}) { current().Error(format, args...) }
