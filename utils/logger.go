package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Logger provides structured, leveled logging throughout the application.
type Logger struct {
	info    *log.Logger
	warn    *log.Logger
	err     *log.Logger
	debug   *log.Logger
	debugOn bool
}

// NewLogger creates a new Logger writing to stdout/stderr. Debug lines are
// only emitted when LOG_LEVEL=debug.
func NewLogger() *Logger {
	flags := 0
	return &Logger{
		info:    log.New(os.Stdout, "", flags),
		warn:    log.New(os.Stdout, "", flags),
		err:     log.New(os.Stderr, "", flags),
		debug:   log.New(os.Stdout, "", flags),
		debugOn: strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug"),
	}
}

// NewLoggerTo sends every level to w. Tests pass io.Discard.
func NewLoggerTo(w io.Writer, debug bool) *Logger {
	return &Logger{
		info:    log.New(w, "", 0),
		warn:    log.New(w, "", 0),
		err:     log.New(w, "", 0),
		debug:   log.New(w, "", 0),
		debugOn: debug,
	}
}

// SetDebug toggles debug output.
func (l *Logger) SetDebug(on bool) { l.debugOn = on }

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Print(fmt.Sprintf("[%s] \033[32mINFO\033[0m  ", l.timestamp()) + fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Print(fmt.Sprintf("[%s] \033[33mWARN\033[0m  ", l.timestamp()) + fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Print(fmt.Sprintf("[%s] \033[31mERROR\033[0m ", l.timestamp()) + fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debugOn {
		return
	}
	l.debug.Print(fmt.Sprintf("[%s] \033[36mDEBUG\033[0m ", l.timestamp()) + fmt.Sprintf(format, args...))
}
