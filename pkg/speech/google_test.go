package speech

import (
	"bytes"
	"encoding/binary"
	"testing"

	speechapi "google.golang.org/api/speech/v1"
)

// buildWAV assembles a minimal RIFF container around the given PCM,
// with an extra odd-sized chunk to exercise word alignment.
func buildWAV(pcm []byte) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(0)) // size, unused by the parser
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	b.Write(make([]byte, 16))

	b.WriteString("LIST")
	binary.Write(&b, binary.LittleEndian, uint32(3))
	b.Write([]byte{1, 2, 3, 0}) // 3 bytes + pad

	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

func TestPCMFromWAV(t *testing.T) {
	pcm := []byte{10, 20, 30, 40, 50, 60}

	t.Run("extracts data chunk", func(t *testing.T) {
		got := pcmFromWAV(buildWAV(pcm))
		if !bytes.Equal(got, pcm) {
			t.Errorf("Expected %v, got %v", pcm, got)
		}
	})

	t.Run("raw PCM passes through", func(t *testing.T) {
		got := pcmFromWAV(pcm)
		if !bytes.Equal(got, pcm) {
			t.Errorf("Expected passthrough, got %v", got)
		}
	})

	t.Run("truncated data chunk", func(t *testing.T) {
		wav := buildWAV(pcm)
		got := pcmFromWAV(wav[:len(wav)-2])
		if !bytes.Equal(got, pcm[:len(pcm)-2]) {
			t.Errorf("Expected clamped data, got %v", got)
		}
	})

	t.Run("missing data chunk", func(t *testing.T) {
		wav := buildWAV(nil)
		wav = wav[:len(wav)-8] // drop the data chunk entirely
		if got := pcmFromWAV(wav); len(got) != 0 {
			t.Errorf("Expected no samples, got %v", got)
		}
	})
}

func TestJoinTranscripts(t *testing.T) {
	resp := &speechapi.RecognizeResponse{
		Results: []*speechapi.SpeechRecognitionResult{
			{Alternatives: []*speechapi.SpeechRecognitionAlternative{
				{Transcript: " turtlebot go to the kitchen"},
			}},
			{Alternatives: nil},
			{Alternatives: []*speechapi.SpeechRecognitionAlternative{
				{Transcript: "and stop "},
				{Transcript: "ignored second alternative"},
			}},
		},
	}

	got := joinTranscripts(resp)
	want := "turtlebot go to the kitchen and stop"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	if got := joinTranscripts(nil); got != "" {
		t.Errorf("Expected empty transcript for nil response, got %q", got)
	}
	if got := joinTranscripts(&speechapi.RecognizeResponse{}); got != "" {
		t.Errorf("Expected empty transcript for empty response, got %q", got)
	}
}
