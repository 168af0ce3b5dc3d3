//go:build windows

// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel

package mcpclient

import "os/exec"

// detachProcess is a no-op on Windows; the reference client instead spawns
// via a shell (shell=sys.platform == "win32") which we don't need here since
// exec.Command already avoids inheriting our console on creation.
func detachProcess(cmd *exec.Cmd) {}
