package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVFromPCM wraps raw PCM16 mono audio in a WAV container.
// STT providers that take file uploads need the header; raw telephony
// frames do not carry one.
func WAVFromPCM(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer

	byteRate := sampleRate * BytesPerPCMSample

	// RIFF header
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	// Format chunk
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(BytesPerPCMSample))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	// Data chunk
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// PCMFromWAV strips the WAV container and returns the raw PCM16 payload.
// Only canonical 44-byte-header mono PCM files are accepted.
func PCMFromWAV(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, fmt.Errorf("audio: WAV too short (%d bytes)", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, fmt.Errorf("audio: not a WAV file")
	}
	format := binary.LittleEndian.Uint16(wav[20:22])
	if format != 1 {
		return nil, fmt.Errorf("audio: unsupported WAV format %d (want PCM)", format)
	}
	dataLen := binary.LittleEndian.Uint32(wav[40:44])
	if int(dataLen) > len(wav)-44 {
		dataLen = uint32(len(wav) - 44)
	}
	return wav[44 : 44+dataLen], nil
}
