// Package logger is the leveled process logger shared by the annotation API,
// the document service and the CLI.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"debug", "info", "warn", "error", "fatal"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelFatal {
		return "info"
	}
	return levelNames[l]
}

var (
	mu     sync.RWMutex
	logger = log.New(os.Stdout, "", 0)
	level  = LevelInfo
)

// ParseLevel maps a level name (case-insensitive, "warning" accepted) to a
// Level. Unknown names yield LevelInfo and false.
func ParseLevel(s string) (Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	for i, n := range levelNames {
		if n == s {
			return Level(i), true
		}
	}
	return LevelInfo, false
}

// Init sets the global log level. Unknown levels fall back to info.
func Init(l string) {
	lv, _ := ParseLevel(l)
	mu.Lock()
	level = lv
	mu.Unlock()
}

// SetOutput redirects log output, returning the previous writer.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := logger.Writer()
	logger = log.New(w, "", 0)
	return prev
}

func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return level.String()
}

func logf(l Level, format string, v ...interface{}) {
	mu.RLock()
	out, threshold := logger, level
	mu.RUnlock()
	if l < threshold {
		return
	}
	prefix := time.Now().Format(time.RFC3339) + " [" + strings.ToUpper(l.String()) + "] "
	out.Print(prefix + fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) { logf(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logf(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logf(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logf(LevelError, format, v...) }

// Fatalf logs regardless of level and exits.
func Fatalf(format string, v ...interface{}) {
	logf(LevelFatal, format, v...)
	os.Exit(1)
}

// Println logs at info level.
func Println(v ...interface{}) {
	logf(LevelInfo, "%s", strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}
