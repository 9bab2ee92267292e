// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger = nil
)

func init() {
	logger = logrus.New()
}

// SetLogger replaces the library's logger instance, e.g. to route output
// into an application wide logrus configuration.
func SetLogger(loggerInstance *logrus.Logger) {
	logger = loggerInstance
}
