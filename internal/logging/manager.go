package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// LoggerManager owns the shared console/file writers and hands out one
// *Logger per component name, creating it on first request.
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
	console *log.Logger
	file    *log.Logger
	level   Level
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager returns the process-wide logger manager, opening the
// shared log file on first use.
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newManager(INFO)
	})
	return globalManager
}

// Configure sets the console threshold for every logger the manager hands
// out from this point on; existing loggers already retrieved are updated
// in place.
func Configure(level Level) {
	m := GetLoggerManager()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
	for _, l := range m.loggers {
		l.level = level
	}
}

func newManager(level Level) *LoggerManager {
	console := log.New(os.Stdout, "", log.LstdFlags)
	var file *log.Logger
	if f, err := openLogFile(); err == nil {
		file = log.New(f, "", log.LstdFlags)
	} else {
		console.Printf("logging: could not open log file, console-only: %v", err)
	}
	return &LoggerManager{
		loggers: make(map[string]*Logger),
		console: console,
		file:    file,
		level:   level,
	}
}

// GetLogger returns the logger for component, creating it if necessary.
func (lm *LoggerManager) GetLogger(component string) *Logger {
	lm.mu.RLock()
	if logger, exists := lm.loggers[component]; exists {
		lm.mu.RUnlock()
		return logger
	}
	lm.mu.RUnlock()

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if logger, exists := lm.loggers[component]; exists {
		return logger
	}

	logger := &Logger{component: component, level: lm.level, console: lm.console, file: lm.file}
	lm.loggers[component] = logger
	return logger
}

// ListComponents returns every component name registered so far.
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	return components
}

// SetLevel changes the console threshold for a single already-created logger.
func (lm *LoggerManager) SetLevel(component string, level Level) error {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("logging: no logger registered for component %q", component)
	}
	logger.level = level
	return nil
}

// GetComponentLogger is the usual entry point for a subsystem's logger.
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().GetLogger(component)
}

func GetTransportLogger() *Logger     { return GetComponentLogger("transport") }
func GetWorldGraphLogger() *Logger    { return GetComponentLogger("worldgraph") }
func GetWorldTickLogger() *Logger     { return GetComponentLogger("worldtick") }
func GetPlayerSessionLogger() *Logger { return GetComponentLogger("playersession") }
func GetSessionIndexLogger() *Logger  { return GetComponentLogger("sessionindex") }
func GetStoreLogger() *Logger         { return GetComponentLogger("store") }
func GetServerLogger() *Logger        { return GetComponentLogger("server") }
