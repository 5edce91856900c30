// Package client talks to a running relay over HTTP. It is what the
// terminal front end uses in place of the browser.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"chatrelay/message"
	"chatrelay/models"
	"chatrelay/stream"
)

// ErrTranscription is returned when the relay could not transcribe audio
var ErrTranscription = errors.New("transcription failed")

const transcribeTimeout = 60 * time.Second

// Client is a relay client
type Client struct {
	http *resty.Client
}

// New creates a client for the relay at baseURL
func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("User-Agent", "chatrelay-cli"),
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	return c.http.Close()
}

type chatRequest struct {
	Messages []message.Message `json:"messages"`
}

// Chat posts the conversation and yields the reply chunks as they arrive.
// Ranging stops after finish, on error, or when the caller breaks out.
func (c *Client) Chat(ctx context.Context, msgs []message.Message) iter.Seq2[stream.Chunk, error] {
	return func(yield func(stream.Chunk, error) bool) {
		res, err := c.http.R().
			SetContext(ctx).
			SetHeader("Accept", "text/event-stream").
			SetBody(chatRequest{Messages: msgs}).
			SetDoNotParseResponse(true).
			Post("/api/chat")
		if err != nil {
			yield(stream.Chunk{}, fmt.Errorf("failed to send chat request: %w", err))
			return
		}
		defer res.Body.Close()

		if res.IsError() {
			raw, _ := io.ReadAll(io.LimitReader(res.Body, 64*1024))
			yield(stream.Chunk{}, fmt.Errorf("chat request failed: %s", errorMessage(raw, res.Status())))
			return
		}

		for chunk, err := range stream.Read(res.Body) {
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// Transcribe uploads a recording and returns the transcript
func (c *Client) Transcribe(ctx context.Context, filename, mediaType string, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	res, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("audio", filename, mediaType, bytes.NewReader(audio)).
		Post("/api/transcribe")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("%w: %s", ErrTranscription, errorMessage(res.Bytes(), res.Status()))
	}

	text := gjson.GetBytes(res.Bytes(), "text")
	if !text.Exists() {
		return "", fmt.Errorf("%w: response has no text", ErrTranscription)
	}
	return text.String(), nil
}

// Models fetches the relay's catalogue
func (c *Client) Models(ctx context.Context) ([]*models.Model, error) {
	var list struct {
		Models []*models.Model `json:"models"`
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&list).
		SetError(&apiErr).
		Get("/api/models")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	if res.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = res.Status()
		}
		return nil, fmt.Errorf("failed to fetch models: %s", msg)
	}
	return list.Models, nil
}

// Catalogue fetches the models into a registry, preserving order
func (c *Client) Catalogue(ctx context.Context) (*models.ModelRegistry, error) {
	list, err := c.Models(ctx)
	if err != nil {
		return nil, err
	}
	registry := models.NewModelRegistry()
	for _, m := range list {
		registry.Register(m)
	}
	return registry, nil
}

// errorMessage extracts {error} from a JSON error body
func errorMessage(raw []byte, fallback string) string {
	if msg := gjson.GetBytes(raw, "error"); msg.Type == gjson.String && msg.Str != "" {
		return msg.Str
	}
	return fallback
}
