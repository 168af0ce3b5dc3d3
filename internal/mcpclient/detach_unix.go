//go:build !windows

// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel

package mcpclient

import (
	"os/exec"
	"syscall"
)

// detachProcess starts cmd in its own session so it survives this process
// exiting, mirroring the reference client's detached subprocess spawn.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
