// Copyright 2024 The nsbox Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the package-level logger used throughout nsbox. It wraps
// logrus so call sites look like runsc's own log.Debugf/log.Warningf, while
// giving us structured fields for container and pid.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetLevel sets the minimum level logged, parsing the same strings logrus
// itself accepts ("debug", "info", "warning", "error").
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(lvl)
	return nil
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) { std.Debugf(format, args...) }

// Infof logs at info level.
func Infof(format string, args ...any) { std.Infof(format, args...) }

// Warningf logs at warning level.
func Warningf(format string, args ...any) { std.Warnf(format, args...) }

// Errorf logs at error level.
func Errorf(format string, args ...any) { std.Errorf(format, args...) }

// WithContainer returns an entry tagged with the container name, for call
// sites that log more than one line about the same container.
func WithContainer(name string) *logrus.Entry {
	return std.WithField("container", name)
}

// WithPID returns an entry tagged with a process id.
func WithPID(pid int32) *logrus.Entry {
	return std.WithField("pid", pid)
}
