// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

import (
	"log"
	"os"
)

var dbgprint = func(...interface{}) {}

var dbgprintf = func(string, ...interface{}) {}

func init() {
	if os.Getenv("PUMP_DEBUG") == "" {
		return
	}
	logger := log.New(os.Stderr, "[pump] ", log.Ltime|log.Lmicroseconds)
	dbgprint = func(v ...interface{}) {
		logger.Print(v...)
	}
	dbgprintf = func(format string, v ...interface{}) {
		logger.Printf(format, v...)
	}
}
