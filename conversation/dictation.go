package conversation

import (
	"context"
)

// Transcriber turns recorded audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, filename, mediaType string, audio []byte) (string, error)
}

// StartDictation begins recording and reflects it in the state
func StartDictation(ctx context.Context, s State, rec *Recorder) (State, error) {
	if s.Transcribing {
		return s, ErrTranscribing
	}
	if err := rec.Start(ctx); err != nil {
		return s, err
	}
	s.Recording = true
	return s, nil
}

// FinishDictation stops recording and transcribes the clip. busy, when
// set, observes the state while the transcription call is in flight. On
// failure the input is left untouched and re-enabled.
func FinishDictation(ctx context.Context, s State, rec *Recorder, t Transcriber, busy func(State)) (State, error) {
	clip, err := rec.Stop()
	s.Recording = false
	if err != nil {
		return s, err
	}

	s = s.BeginTranscription()
	if busy != nil {
		busy(s)
	}

	text, err := t.Transcribe(ctx, clip.Filename, clip.MediaType, clip.Data)
	if err != nil {
		return s.EndTranscription(""), err
	}
	return s.EndTranscription(text), nil
}
