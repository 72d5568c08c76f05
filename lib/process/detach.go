// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// detachedEnv marks a process as the detached daemon worker. The
// launcher sets it on the child it spawns; the child sees it and skips
// straight to daemon work instead of spawning again.
const detachedEnv = "SPOOLD_DETACHED"

// Detached reports whether this process is the detached worker.
func Detached() bool {
	return os.Getenv(detachedEnv) == "1"
}

// SpawnDetached re-executes the current binary with the given
// arguments as a detached worker: marker environment set, a fresh
// session via Setsid, and stdio on /dev/null. Returns the child PID.
//
// The caller is expected to exit shortly after; the worker is
// reparented to init and lives on its own.
func SpawnDetached(args []string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locate executable: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(executable, args...)
	cmd.Env = append(os.Environ(), detachedEnv+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start detached worker: %w", err)
	}

	pid := cmd.Process.Pid
	// The worker outlives us; drop the handle rather than waiting.
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release detached worker: %w", err)
	}
	return pid, nil
}
