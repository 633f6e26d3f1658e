package audio

import (
	"bytes"
	"testing"
	"time"
)

func TestUlawRoundTrip(t *testing.T) {
	// One sine-ish ramp of PCM16 samples
	pcm := make([]byte, 320) // 160 samples = 20ms at 8kHz
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = byte(i)
		pcm[i+1] = byte(i >> 3)
	}

	ulaw := EncodeUlaw(pcm)
	if len(ulaw) != len(pcm)/2 {
		t.Fatalf("expected %d ulaw bytes, got %d", len(pcm)/2, len(ulaw))
	}

	decoded := DecodeUlaw(ulaw)
	if len(decoded) != len(pcm) {
		t.Fatalf("expected %d pcm bytes, got %d", len(pcm), len(decoded))
	}
}

func TestDurations(t *testing.T) {
	// 8000 μ-law bytes = 1 second
	if d := UlawDuration(make([]byte, 8000)); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
	// 16000 PCM16 bytes = 1 second
	if d := PCMDuration(make([]byte, 16000)); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	wav := WAVFromPCM(pcm, SampleRate)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Error("missing RIFF header")
	}
	if len(wav) != 44+len(pcm) {
		t.Errorf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}

	got, err := PCMFromWAV(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("payload mismatch: %v != %v", got, pcm)
	}
}

func TestPCMFromWAVRejectsGarbage(t *testing.T) {
	if _, err := PCMFromWAV([]byte("not a wav")); err == nil {
		t.Error("expected error for short input")
	}
	junk := make([]byte, 64)
	if _, err := PCMFromWAV(junk); err == nil {
		t.Error("expected error for missing RIFF header")
	}
}

func TestBuffer(t *testing.T) {
	t.Run("accumulates frames", func(t *testing.T) {
		buf := NewBuffer(0)
		buf.Append([]byte{1, 2, 3})
		buf.Append([]byte{4, 5})
		if buf.Len() != 5 {
			t.Errorf("expected 5 bytes, got %d", buf.Len())
		}
		data := buf.Take()
		if !bytes.Equal(data, []byte{1, 2, 3, 4, 5}) {
			t.Errorf("unexpected data: %v", data)
		}
		if buf.Len() != 0 {
			t.Error("expected empty buffer after Take")
		}
	})

	t.Run("enforces cap", func(t *testing.T) {
		buf := NewBuffer(4)
		if err := buf.Append([]byte{1, 2, 3}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := buf.Append([]byte{4, 5}); err != ErrBufferFull {
			t.Errorf("expected ErrBufferFull, got %v", err)
		}
		// Existing contents survive the rejected append
		if buf.Len() != 3 {
			t.Errorf("expected 3 bytes, got %d", buf.Len())
		}
	})

	t.Run("reset discards audio", func(t *testing.T) {
		buf := NewBuffer(0)
		buf.Append([]byte{1, 2, 3})
		buf.Reset()
		if buf.Len() != 0 {
			t.Error("expected empty buffer after Reset")
		}
	})
}
