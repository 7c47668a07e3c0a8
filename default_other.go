// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

//go:build unix && !linux

package pump

const defaultBackend = "poll"
