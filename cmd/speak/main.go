// Speak - synthesizes a phrase with the Cloud Text-to-Speech adapter
// and writes it to a WAV file. A quick check that speech credentials
// and voice selection work before enabling the voice pipeline.
//
// Usage:
//
//	export GOOGLE_APPLICATION_CREDENTIALS=key.json
//	speak -out hello.wav "hello from the robot"
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/asadbey/turtlebot3-automation/internal/log"
	"github.com/asadbey/turtlebot3-automation/pkg/speech"
)

func main() {
	var (
		out      = flag.String("out", "speech.wav", "Output WAV file")
		voice    = flag.String("voice", "", "Synthesis voice name (e.g. en-US-Neural2-C)")
		language = flag.String("language", "en-US", "Synthesis language code")
		rate     = flag.Int("rate", 16000, "Output sample rate in Hz")
	)
	flag.Parse()

	text := strings.Join(flag.Args(), " ")
	if text == "" {
		text = "All systems nominal."
	}

	log.Init("info")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var pcm []byte
	spk, err := speech.NewGoogleSpeaker(ctx,
		speech.WithVoice(*voice),
		speech.WithSpeakerLanguage(*language),
		speech.WithSpeakerSampleRate(*rate),
		speech.WithSink(func(data []byte, sampleRate int) error {
			pcm = append(pcm, data...)
			return nil
		}),
	)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer spk.Close()

	fmt.Printf("🎙️  Synthesizing %q... ", text)
	if err := spk.Speak(ctx, text); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ (%d KB)\n", len(pcm)/1024)

	if err := writeWAV(*out, speech.BytesToSamples(pcm), *rate, 1); err != nil {
		fmt.Printf("❌ write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("💾 Saved %s\n", *out)
}

// writeWAV writes 16-bit little-endian PCM as a RIFF/WAVE file.
func writeWAV(filename string, samples []int16, sampleRate, channels int) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	dataSize := len(samples) * 2
	fileSize := 36 + dataSize

	// RIFF header
	f.Write([]byte("RIFF"))
	binary.Write(f, binary.LittleEndian, uint32(fileSize))
	f.Write([]byte("WAVE"))

	// fmt chunk
	f.Write([]byte("fmt "))
	binary.Write(f, binary.LittleEndian, uint32(16))
	binary.Write(f, binary.LittleEndian, uint16(1))
	binary.Write(f, binary.LittleEndian, uint16(channels))
	binary.Write(f, binary.LittleEndian, uint32(sampleRate))
	binary.Write(f, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(f, binary.LittleEndian, uint16(channels*2))
	binary.Write(f, binary.LittleEndian, uint16(16))

	// data chunk
	f.Write([]byte("data"))
	binary.Write(f, binary.LittleEndian, uint32(dataSize))
	for _, sample := range samples {
		binary.Write(f, binary.LittleEndian, sample)
	}
	return nil
}
