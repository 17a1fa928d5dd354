package logging

import (
	"fmt"
	"sort"
	"sync"
)

// LoggerManager раздаёт логгеры компонентов (catalog, portal, eventbus,
// api, storage). Логгеры компонентов пишут через глобальный логгер, но у
// каждого может быть свой порог из конфигурации.
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
	levels  map[string]LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = NewLoggerManager()
	})
	return globalManager
}

// NewLoggerManager создаёт пустой менеджер
func NewLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers: make(map[string]*Logger),
		levels:  make(map[string]LogLevel),
	}
}

// GetLogger возвращает логгер компонента, создавая его при первом запросе.
// Пока уровень компонента не задан, действуют пороги глобального логгера.
func (lm *LoggerManager) GetLogger(component string) *Logger {
	lm.mu.RLock()
	if logger, exists := lm.loggers[component]; exists {
		lm.mu.RUnlock()
		return logger
	}
	lm.mu.RUnlock()

	lm.mu.Lock()
	defer lm.mu.Unlock()

	// Проверяем еще раз на случай гонки
	if logger, exists := lm.loggers[component]; exists {
		return logger
	}

	logger := &Logger{component: component, shared: true, inherit: true}
	if level, ok := lm.levels[component]; ok {
		logger.SetLevels(level, level)
	}
	lm.loggers[component] = logger
	return logger
}

// SetLogLevel задаёт порог компонента. Уровень запоминается и для
// компонентов, логгер которых ещё не создан.
func (lm *LoggerManager) SetLogLevel(component string, level LogLevel) {
	lm.mu.Lock()
	lm.levels[component] = level
	logger, exists := lm.loggers[component]
	lm.mu.Unlock()

	if exists {
		logger.SetLevels(level, level)
	}
}

// Configure применяет уровни вида {"portal": "debug"} из конфигурации
func (lm *LoggerManager) Configure(levels map[string]string) error {
	for component, raw := range levels {
		level, err := ParseLevel(raw)
		if err != nil {
			return fmt.Errorf("logging.components.%s: %w", component, err)
		}
		lm.SetLogLevel(component, level)
	}
	return nil
}

// Level возвращает заданный порог компонента
func (lm *LoggerManager) Level(component string) (LogLevel, bool) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	level, ok := lm.levels[component]
	return level, ok
}

// ListComponents возвращает отсортированный список компонентов с логгерами
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// GetComponentLogger удобный доступ к логгеру компонента
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().GetLogger(component)
}

// ConfigureComponents применяет уровни компонентов к глобальному менеджеру
func ConfigureComponents(levels map[string]string) error {
	return GetLoggerManager().Configure(levels)
}
