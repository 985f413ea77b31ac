package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/internal/model"
)

const ServiceSpeech = "speech"

// MaxAudioBytes is the largest upload the speech-to-text provider accepts.
const MaxAudioBytes = 25 << 20

var audioExtensions = map[string]bool{
	".flac": true, ".m4a": true, ".mp3": true, ".mp4": true, ".mpeg": true,
	".mpga": true, ".oga": true, ".ogg": true, ".wav": true, ".webm": true,
}

// Speech is the resilient wrapper around the speech-to-text service. Audio is
// buffered so that every attempt sends the full recording.
type Speech struct {
	*caller
	tr llm.Transcriber
}

func NewSpeech(tr llm.Transcriber, opts Options) *Speech {
	return &Speech{caller: newCaller(ServiceSpeech, opts, llm.IsRetryable), tr: tr}
}

func (s *Speech) Transcribe(ctx context.Context, audio io.Reader, filename string) (*llm.Transcription, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !audioExtensions[ext] {
		return nil, model.NewValidationError("filename", "unsupported audio type %q", ext)
	}
	data, err := io.ReadAll(io.LimitReader(audio, MaxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	switch {
	case len(data) == 0:
		return nil, model.NewValidationError("audio", "must not be empty")
	case len(data) > MaxAudioBytes:
		return nil, model.NewValidationError("audio", "exceeds %d bytes", MaxAudioBytes)
	}

	var out *llm.Transcription
	err = s.direct(ctx, "transcribe", func(ctx context.Context) error {
		t, err := s.tr.Transcribe(ctx, bytes.NewReader(data), filename)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}
