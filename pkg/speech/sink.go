package speech

import (
	"encoding/base64"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// BusSink returns a Sink that publishes synthesized audio on the given
// topic as a base64 AudioData message, the same envelope the capture
// stream uses. The robot side is expected to play whatever arrives.
func BusSink(bus bridge.Bus, topic string) Sink {
	return func(pcm []byte, sampleRate int) error {
		return bus.Publish(topic, bridge.AudioData{
			Data: base64.StdEncoding.EncodeToString(pcm),
		})
	}
}
