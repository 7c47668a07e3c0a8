// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

// Package fswatch reports filesystem changes through a pump.Manager. On
// linux an inotify descriptor is watched by a pump fd watcher, so change
// events are delivered on the loop like any other callback.
//
// Only linux is implemented.
package fswatch
