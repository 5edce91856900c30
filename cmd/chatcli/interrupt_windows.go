//go:build windows

package main

import (
	"os/exec"
)

// Windows has no SIGINT for child processes; ffmpeg still flushes what it
// has written when killed, though the container may lack its trailer.
func interrupt(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
