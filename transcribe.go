package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"chatrelay/conversation"
)

const (
	transcriptionModel     = "whisper-1"
	transcriptionFailedMsg = "Transcription failed"
)

var errTranscriptionFailed = errors.New(transcriptionFailedMsg)

// transcriptionProxy forwards recorded audio to the Whisper API
type transcriptionProxy struct {
	client  *resty.Client
	url     string
	timeout time.Duration
}

func newTranscriptionProxy(url, apiKey string, timeout time.Duration) *transcriptionProxy {
	return &transcriptionProxy{
		client:  resty.New().SetAuthToken(apiKey),
		url:     url,
		timeout: timeout,
	}
}

// upstreamTranscriptionError carries the message of a non-2xx answer
type upstreamTranscriptionError struct {
	status  int
	message string
}

func (e *upstreamTranscriptionError) Error() string {
	return e.message
}

// Transcribe sends one clip and returns the transcript. No retry.
func (p *transcriptionProxy) Transcribe(ctx context.Context, filename, mediaType string, audio io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if filename == "" {
		filename = conversation.RecordingFilename
	}
	if mediaType == "" {
		mediaType = conversation.RecordingMediaType
	}

	res, err := p.client.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{"model": transcriptionModel}).
		SetMultipartField("file", filename, mediaType, audio).
		Post(p.url)
	if err != nil {
		return "", err
	}

	body := res.Bytes()
	if res.IsError() {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = transcriptionFailedMsg
		}
		return "", &upstreamTranscriptionError{status: res.StatusCode(), message: msg}
	}

	text := gjson.GetBytes(body, "text")
	if text.Type != gjson.String {
		return "", errTranscriptionFailed
	}
	return text.Str, nil
}

// handleTranscribe handles POST /api/transcribe
func (s *server) handleTranscribe(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}
	defer file.Close()

	text, err := s.transcriber.Transcribe(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		var upstream *upstreamTranscriptionError
		if errors.As(err, &upstream) {
			log.Printf("[Transcribe] Upstream returned %d: %s", upstream.status, upstream.message)
			c.JSON(http.StatusInternalServerError, gin.H{"error": upstream.message})
			return
		}
		log.Printf("[Transcribe] Transcription error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": transcriptionFailedMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": text})
}
