package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// Audio produced by a finished recording
const (
	RecordingFilename  = "recording.webm"
	RecordingMediaType = "audio/webm"
)

// Microphone acquires an audio input device
type Microphone interface {
	Open(ctx context.Context) (Capture, error)
}

// Capture is an acquired device that is recording
type Capture interface {
	// Stop ends capture and returns the recorded audio
	Stop() ([]byte, error)
	// Close releases the device. It is called exactly once per capture.
	Close() error
}

// RecorderState is Idle or Recording
type RecorderState int

const (
	Idle RecorderState = iota
	Recording
)

func (s RecorderState) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Clip is a finished recording ready for transcription
type Clip struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Recorder is a two-state session around a Microphone. The device is
// held only while Recording and is released on every transition back to
// Idle, including failed ones.
type Recorder struct {
	mic Microphone

	mu      sync.Mutex
	state   RecorderState
	capture Capture
}

// NewRecorder creates an idle recorder
func NewRecorder(mic Microphone) *Recorder {
	return &Recorder{mic: mic}
}

// State returns the current state
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the microphone and begins recording
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording {
		return ErrAlreadyRecording
	}
	capture, err := r.mic.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	r.capture = capture
	r.state = Recording
	return nil
}

// Stop ends the recording, releases the microphone and returns the clip
func (r *Recorder) Stop() (Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return Clip{}, ErrNotRecording
	}
	capture := r.capture
	r.capture = nil
	r.state = Idle

	data, stopErr := capture.Stop()
	closeErr := capture.Close()
	if stopErr != nil {
		return Clip{}, fmt.Errorf("failed to stop recording: %w", stopErr)
	}
	if closeErr != nil {
		return Clip{}, fmt.Errorf("failed to release microphone: %w", closeErr)
	}
	return Clip{Filename: RecordingFilename, MediaType: RecordingMediaType, Data: data}, nil
}

// Abort releases the microphone and discards any audio
func (r *Recorder) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return nil
	}
	capture := r.capture
	r.capture = nil
	r.state = Idle
	return capture.Close()
}

// Toggle starts when idle and stops when recording. clip is non-nil only
// when a recording finished.
func (r *Recorder) Toggle(ctx context.Context) (*Clip, error) {
	if r.State() == Idle {
		return nil, r.Start(ctx)
	}
	clip, err := r.Stop()
	if err != nil {
		return nil, err
	}
	return &clip, nil
}
