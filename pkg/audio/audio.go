// Package audio provides telephony audio helpers: G.711 μ-law transcoding,
// WAV container encoding, and a bounded buffer for accumulating one
// caller utterance.
//
// All telephony audio in this system is 8kHz mono. Inbound frames arrive
// as μ-law (one byte per sample); providers consume and produce 16-bit
// little-endian PCM.
package audio

import (
	"time"

	"github.com/zaf/g711"
)

// Telephony audio constants.
const (
	// SampleRate is the telephony sample rate in Hz.
	SampleRate = 8000

	// BytesPerPCMSample is the size of one PCM16 sample.
	BytesPerPCMSample = 2
)

// DecodeUlaw converts μ-law telephony audio to 16-bit LPCM.
func DecodeUlaw(ulaw []byte) []byte {
	return g711.DecodeUlaw(ulaw)
}

// EncodeUlaw converts 16-bit LPCM to μ-law telephony audio.
func EncodeUlaw(pcm []byte) []byte {
	return g711.EncodeUlaw(pcm)
}

// PCMDuration returns the playback duration of PCM16 audio at the
// telephony sample rate.
func PCMDuration(pcm []byte) time.Duration {
	samples := len(pcm) / BytesPerPCMSample
	return time.Duration(samples) * time.Second / SampleRate
}

// UlawDuration returns the playback duration of μ-law audio at the
// telephony sample rate.
func UlawDuration(ulaw []byte) time.Duration {
	return time.Duration(len(ulaw)) * time.Second / SampleRate
}
