package deepgram

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNewSpeechClientRejectsUnknownVoice(t *testing.T) {
	if _, err := NewSpeechClient("key", "aura-2-unknown-en"); err == nil {
		t.Fatalf("expected error for unknown voice")
	}
}

func TestSynthesizeEmptyTextIsNotAnError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client, err := NewSpeechClient("key", "", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	audioBytes, err := client.Synthesize(context.Background(), "   ")
	if err != nil {
		t.Fatalf("expected no error for empty text, got %v", err)
	}
	if len(audioBytes) != 0 {
		t.Fatalf("expected empty audio, got %d bytes", len(audioBytes))
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request for empty text")
	}
}

func TestSynthesizeReturnsRawAudio(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x01, 0x02}, 1600)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("encoding") != "linear16" || query.Get("sample_rate") != "8000" {
			t.Errorf("expected telephony encoding params, got %v", query)
		}
		if query.Get("model") != string(VoiceThalia) {
			t.Errorf("expected voice model, got %q", query.Get("model"))
		}
		_, _ = w.Write(pcm)
	}))
	defer server.Close()

	client, err := NewSpeechClient("key", VoiceThalia, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	audioBytes, err := client.Synthesize(context.Background(), "Hello, how can I help?")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !bytes.Equal(audioBytes, pcm) {
		t.Fatalf("expected raw PCM passthrough, got %d bytes", len(audioBytes))
	}
}

func TestSynthesizeDoesNotRetryOnFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewSpeechClient("key", "", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if _, err := client.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error on non-OK status")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one attempt, got %d", got)
	}
}
