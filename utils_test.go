// File created by olandr (c) 2025.
// Contains code from Copyright (c) 2014-2015 The Notify Authors. All rights reserved.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/sys/unix"
)

func callern(n int) string {
	_, file, line, ok := runtime.Caller(n)
	if !ok {
		return "<unknown>"
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

func caller() string {
	return callern(3)
}

func timeout() time.Duration {
	if s := os.Getenv("PUMP_TIMEOUT"); s != "" {
		if t, err := time.ParseDuration(s); err == nil {
			return t
		}
	}
	return 5 * time.Second
}

// pipe returns a pipe whose write end is non-blocking. Both ends are closed
// at cleanup.
func pipe(t *testing.T) (r, w int) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("Pipe()=%v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	if err := unix.SetNonblock(fds[1], true); err != nil {
		t.Fatalf("SetNonblock(%d)=%v", fds[1], err)
	}
	return fds[0], fds[1]
}

// payload returns a random sentence of at least n bytes.
func payload(n int) []byte {
	b := []byte(gofakeit.Sentence(8))
	for len(b) < n {
		b = append(b, ' ')
		b = append(b, gofakeit.Word()...)
	}
	return b
}

// pairs returns a random number of reference pairs.
func pairs() int {
	return gofakeit.IntRange(1, 64)
}
