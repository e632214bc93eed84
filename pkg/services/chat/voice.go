package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"
)

// VoiceState of the capture pipeline: idle → recording → processing → idle
type VoiceState string

const (
	VoiceIdle       VoiceState = "idle"
	VoiceRecording  VoiceState = "recording"
	VoiceProcessing VoiceState = "processing"
)

// recording lives from a granted microphone until the pipeline is idle again
type recording struct {
	stream AudioStream
	chunks [][]byte
	done   chan struct{}

	stopOnce sync.Once
}

// stop finalizes the stream and releases the device, once
func (r *recording) stop() {
	r.stopOnce.Do(func() {
		if err := r.stream.Stop(); err != nil {
			logger().Infow("stop audio stream fail", "err", err)
		}
	})
}

// VoiceState returns the current pipeline state
func (s *Session) VoiceState() VoiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// StartRecording asks for the microphone and starts buffering audio
func (s *Session) StartRecording(ctx context.Context) error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	if s.voice != VoiceIdle || s.opening {
		s.mu.Unlock()
		return ErrVoiceBusy
	}
	mic := s.mic
	if mic == nil || !mic.Supported() {
		s.mu.Unlock()
		s.notice(s.notices.NoCapture)
		return ErrNoCapture
	}
	s.opening = true
	s.mu.Unlock()

	stream, err := mic.Open(ctx)

	s.mu.Lock()
	s.opening = false
	if err != nil {
		s.mu.Unlock()
		logger().Infow("open microphone fail", "err", err)
		s.notice(s.notices.MicDenied)
		return ErrMicDenied
	}
	if s.closed {
		s.mu.Unlock()
		_ = stream.Stop()
		return ErrClosed
	}
	rec := &recording{stream: stream, done: make(chan struct{})}
	s.rec = rec
	s.voice = VoiceRecording
	s.mu.Unlock()

	s.emit(Event{Kind: EventRecording, Voice: VoiceRecording})
	go s.collect(rec)
	return nil
}

// StopRecording finalizes the capture, the buffered audio is then
// transcribed in the background, see WaitVoice.
func (s *Session) StopRecording() error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	if s.voice != VoiceRecording || s.rec == nil {
		s.mu.Unlock()
		return ErrNotRecording
	}
	rec := s.rec
	s.voice = VoiceProcessing
	s.mu.Unlock()

	s.emit(Event{Kind: EventRecording, Voice: VoiceProcessing})
	rec.stop()
	return nil
}

// CancelRecording stops a running capture and dismisses the voice surface
func (s *Session) CancelRecording() {
	if s.VoiceState() == VoiceRecording {
		_ = s.StopRecording()
	}
	s.emit(Event{Kind: EventVoiceDismissed})
}

// WaitVoice blocks until the pipeline is idle
func (s *Session) WaitVoice(ctx context.Context) error {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()
	if rec == nil {
		return nil
	}
	select {
	case <-rec.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) collect(rec *recording) {
	for chunk := range rec.stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.mu.Lock()
		rec.chunks = append(rec.chunks, chunk)
		s.mu.Unlock()
	}

	s.mu.Lock()
	ended := s.rec == rec && s.voice == VoiceRecording // the device ended it
	if ended {
		s.voice = VoiceProcessing
	}
	chunks := rec.chunks
	rec.chunks = nil
	s.mu.Unlock()

	rec.stop()
	if ended {
		s.emit(Event{Kind: EventRecording, Voice: VoiceProcessing})
	}
	s.process(rec, chunks)
}

func (s *Session) process(rec *recording, chunks [][]byte) {
	defer s.finish(rec)

	if len(chunks) == 0 {
		s.notice(s.notices.NoSpeech)
		s.pause()
		return
	}

	audio := base64.StdEncoding.EncodeToString(bytes.Join(chunks, nil))
	logger().Debugw("transcribe", "chunks", len(chunks), "size", len(audio))
	res, err := s.api.Transcribe(s.ctx, audio)
	if err == nil && res.Success && strings.TrimSpace(res.Text) != "" {
		s.emit(Event{Kind: EventInput, Text: res.Text})
		return
	}

	msg := s.notices.SpeechFailed
	if err != nil {
		logger().Infow("transcribe fail", "err", err)
		msg = s.notices.SpeechError
	} else if reason := strings.TrimSpace(res.Text); reason != "" {
		msg = reason
	}
	s.notice(msg)
	s.pause()
}

func (s *Session) finish(rec *recording) {
	s.mu.Lock()
	if s.rec == rec {
		s.rec = nil
		s.voice = VoiceIdle
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventRecording, Voice: VoiceIdle})
	close(rec.done)
}

// pause keeps a notice readable before the surface goes back to idle
func (s *Session) pause() {
	if s.noticeDelay <= 0 {
		return
	}
	t := time.NewTimer(s.noticeDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.ctx.Done():
	}
}
