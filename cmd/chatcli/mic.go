package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"chatrelay/conversation"
)

// ffmpegMicrophone records through an ffmpeg child process writing WebM/Opus
// to stdout
type ffmpegMicrophone struct {
	device string
}

func newFFmpegMicrophone(device string) *ffmpegMicrophone {
	return &ffmpegMicrophone{device: device}
}

// inputArgs selects the capture backend for the platform
func (m *ffmpegMicrophone) inputArgs() []string {
	switch runtime.GOOS {
	case "darwin":
		device := m.device
		if device == "" {
			device = ":0"
		}
		return []string{"-f", "avfoundation", "-i", device}
	case "windows":
		return []string{"-f", "dshow", "-i", "audio=" + m.device}
	default:
		device := m.device
		if device == "" {
			device = "default"
		}
		return []string{"-f", "pulse", "-i", device}
	}
}

func (m *ffmpegMicrophone) Open(ctx context.Context) (conversation.Capture, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := append([]string{"-hide_banner", "-loglevel", "error", "-nostdin"}, m.inputArgs()...)
	args = append(args, "-c:a", "libopus", "-f", "webm", "pipe:1")

	// The capture outlives ctx, so the process is not bound to it
	cmd := exec.Command(path, args...)
	c := &ffmpegCapture{cmd: cmd, done: make(chan struct{})}
	cmd.Stdout = &c.out
	cmd.Stderr = &c.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	go func() {
		c.waitErr = cmd.Wait()
		close(c.done)
	}()
	return c, nil
}

type ffmpegCapture struct {
	cmd    *exec.Cmd
	out    bytes.Buffer
	stderr bytes.Buffer

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
}

// Stop interrupts ffmpeg so it finalizes the container, then returns the audio
func (c *ffmpegCapture) Stop() ([]byte, error) {
	select {
	case <-c.done:
	default:
		if err := interrupt(c.cmd); err != nil {
			return nil, err
		}
	}
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		_ = c.cmd.Process.Kill()
		<-c.done
		return nil, errors.New("ffmpeg did not exit")
	}

	var exitErr *exec.ExitError
	if c.waitErr != nil && !errors.As(c.waitErr, &exitErr) {
		return nil, c.waitErr
	}
	if c.out.Len() == 0 {
		return nil, fmt.Errorf("no audio captured: %s", bytes.TrimSpace(c.stderr.Bytes()))
	}
	return c.out.Bytes(), nil
}

// Close kills ffmpeg if it is still running
func (c *ffmpegCapture) Close() error {
	c.closeOnce.Do(func() {
		select {
		case <-c.done:
		default:
			_ = c.cmd.Process.Kill()
			<-c.done
		}
	})
	return nil
}

// detectMediaType picks a media type from the extension, sniffing the
// content when the extension is unknown
func detectMediaType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data[:min(len(data), 512)])
}
