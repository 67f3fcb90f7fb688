// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package log

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

const (
	colorRed    = 31
	colorYellow = 33
	colorBlue   = 34
	colorGray   = 37
)

// TextFormatter renders log entries as a short level tag followed by the
// message and any sorted fields.  Colors are only emitted when the logger's
// output is an interactive terminal.
type TextFormatter struct {
	// Set to true to bypass checking for a TTY before outputting colors.
	ForceColors bool

	// Force disabling colors.  For a TTY colors are enabled by default.
	DisableColors bool

	isTerminal bool

	sync.Once
}

func (f *TextFormatter) init(entry *logrus.Entry) {
	if entry.Logger == nil {
		return
	}

	if out, ok := entry.Logger.Out.(*os.File); ok {
		f.isTerminal = isatty.IsTerminal(out.Fd())
	}
}

func (f *TextFormatter) levelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return colorGray
	case logrus.WarnLevel:
		return colorYellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorRed
	default:
		return colorBlue
	}
}

// Format implements logrus.Formatter.
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	f.Do(func() { f.init(entry) })

	useColors := (f.ForceColors || f.isTerminal) && !f.DisableColors

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := &bytes.Buffer{}

	level := strings.ToUpper(entry.Level.String())[0:4]
	if useColors {
		fmt.Fprintf(b, "\x1b[%dm%s\x1b[0m ", f.levelColor(entry.Level), level)
	} else {
		fmt.Fprintf(b, "%s ", level)
	}

	b.WriteString(strings.TrimSuffix(entry.Message, "\n"))

	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')

	return b.Bytes(), nil
}
