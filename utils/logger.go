/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package utils holds the named logrus loggers shared by the database and
// repository packages.
package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const timestampFormat = "2006-01-02 15:04:05.000"

var (
	mu            sync.RWMutex
	registry      = map[string]*logrus.Logger{}
	baseLevel     = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info"))
	consoleFormat = normalizeFormat(EnvDefaultString("CONSOLE_LOG_FORMAT", "text"))
	output        io.Writer = os.Stdout
)

func normalizeFormat(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return "json"
	}
	return "text"
}

// ConfigureConsoleLogFormat switches loggers created afterwards between
// "text" and "json".
func ConfigureConsoleLogFormat(format string) {
	mu.Lock()
	consoleFormat = normalizeFormat(format)
	mu.Unlock()
}

// ConfigureOutput redirects every registered logger, and those created later.
func ConfigureOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	mu.Lock()
	defer mu.Unlock()
	output = w
	for _, l := range registry {
		l.SetOutput(w)
	}
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// ConfigureLogLevel sets the level of every registered logger.
func ConfigureLogLevel(levelStr string) {
	lvl := ParseLogLevel(levelStr)
	mu.Lock()
	defer mu.Unlock()
	baseLevel = lvl
	for _, l := range registry {
		l.SetLevel(lvl)
	}
}

// SetLoggerLevel changes one named logger. It reports false for unknown names.
func SetLoggerLevel(name string, lvlStr string) bool {
	mu.RLock()
	l, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return false
	}
	l.SetLevel(ParseLogLevel(lvlStr))
	return true
}

// NewLogger returns the logger registered under name, creating it on first use.
func NewLogger(name string) *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := registry[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(baseLevel)
	l.SetReportCaller(true)
	if consoleFormat == "json" {
		l.SetFormatter(&JSONLogFormatter{LoggerName: name})
	} else {
		l.SetFormatter(&Log4jColorFormatter{LoggerName: name, NameWidth: 10})
	}
	registry[name] = l
	return l
}

var levelColors = map[logrus.Level]*color.Color{
	logrus.PanicLevel: color.New(color.FgRed, color.Bold),
	logrus.FatalLevel: color.New(color.FgRed, color.Bold),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.DebugLevel: color.New(color.FgBlue),
	logrus.TraceLevel: color.New(color.FgMagenta),
}

var (
	pidColor    = color.New(color.FgMagenta)
	nameColor   = color.New(color.FgCyan)
	callerColor = color.New(color.Faint)
)

// Log4jColorFormatter renders one line per entry in the layout
// "time LEVEL pid - [main] name file:line : message key=value ...".
type Log4jColorFormatter struct {
	LoggerName string
	NameWidth  int
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(entry.Time.Format(timestampFormat))
	b.WriteByte(' ')
	lvl := fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String()))
	if c, ok := levelColors[entry.Level]; ok {
		lvl = c.Sprint(lvl)
	}
	b.WriteString(lvl)
	b.WriteByte(' ')
	b.WriteString(pidColor.Sprintf("%-6d", os.Getpid()))
	b.WriteString(" - [main] ")
	name := f.LoggerName
	if f.NameWidth > 0 {
		if r := []rune(name); len(r) > f.NameWidth {
			name = string(r[:f.NameWidth])
		}
		name = fmt.Sprintf("%*s", f.NameWidth, name)
	}
	b.WriteString(nameColor.Sprint(name))
	if c := caller(entry); c != "" {
		b.WriteString(callerColor.Sprint(" " + c))
	}
	b.WriteString(" : ")
	b.WriteString(entry.Message)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

type JSONLogFormatter struct {
	LoggerName string
}

type jsonLogRecord struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Logger  string                 `json:"logger"`
	Caller  string                 `json:"caller,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	rec := jsonLogRecord{
		Time:    entry.Time.Format(timestampFormat),
		Level:   entry.Level.String(),
		Logger:  f.LoggerName,
		Caller:  caller(entry),
		Message: entry.Message,
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func caller(entry *logrus.Entry) string {
	if entry.Caller == nil {
		return ""
	}
	dir := filepath.Base(filepath.Dir(entry.Caller.File))
	return dir + "/" + filepath.Base(entry.Caller.File) + ":" + strconv.Itoa(entry.Caller.Line)
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

