// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

// Package pidlock enforces the one-daemon-per-runtime-directory rule
// with an advisory file lock. The lock file holds the owner's PID so a
// second daemon can report who beat it there.
//
// The kernel drops the lock when the owning process exits, however it
// exits, so a crashed daemon never wedges the next start. The file
// itself persists; its content is only trustworthy while the lock is
// held.
package pidlock

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning reports that another process holds the lock.
// Errors from Acquire unwrap to it.
var ErrAlreadyRunning = errors.New("daemon already running")

// AlreadyRunningError carries the lock path and the holder's PID as
// read from the lock file. PID is 0 when the file was unreadable.
type AlreadyRunningError struct {
	Path string
	PID  int
}

func (e *AlreadyRunningError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("daemon already running (pid %d, lock %s)", e.PID, e.Path)
	}
	return fmt.Sprintf("daemon already running (lock %s)", e.Path)
}

func (e *AlreadyRunningError) Unwrap() error {
	return ErrAlreadyRunning
}

// Lock is a held singleton lock.
type Lock struct {
	path string
	file *os.File
}

// Acquire opens (creating if needed) the lock file at path, takes a
// non-blocking exclusive flock(2) on it, and records the current PID
// in it. If another process holds the lock, the returned error is an
// *AlreadyRunningError.
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		holder := readHolderPID(file)
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, &AlreadyRunningError{Path: path, PID: holder}
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	// The lock is ours; the previous owner's PID can go.
	if err := file.Truncate(0); err != nil {
		file.Close()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("write pid: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// readHolderPID returns the PID recorded in the lock file, or 0 when
// the content is missing or malformed.
func readHolderPID(file *os.File) int {
	data := make([]byte, 32)
	n, err := file.ReadAt(data, 0)
	if err != nil && err != io.EOF {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data[:n])))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// Path returns the lock file path.
func (lock *Lock) Path() string {
	return lock.path
}

// Release unlocks and closes the lock file. The file is left in place.
// Callers that hold the lock for the life of the process can skip
// Release and rely on exit.
func (lock *Lock) Release() error {
	if err := unix.Flock(int(lock.file.Fd()), unix.LOCK_UN); err != nil {
		lock.file.Close()
		return fmt.Errorf("unlock %s: %w", lock.path, err)
	}
	if err := lock.file.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}
