package rtc

import (
	"github.com/vmihailenco/msgpack/v5"
)

// StatusMessage is exchanged on the per-peer status data channel so each
// side can render mute/camera/share state without a server round trip.
type StatusMessage struct {
	Username string `msgpack:"username"`
	Muted    bool   `msgpack:"muted"`
	VideoOff bool   `msgpack:"videoOff"`
	Sharing  bool   `msgpack:"sharing"`
}

func encodeStatus(msg StatusMessage) ([]byte, error) {
	return msgpack.Marshal(msg)
}

func decodeStatus(data []byte) (StatusMessage, error) {
	var msg StatusMessage
	err := msgpack.Unmarshal(data, &msg)
	return msg, err
}
