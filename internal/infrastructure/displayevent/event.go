package displayevent

import "fmt"

// Kind tags the payload of an Event.
type Kind uint8

const (
	KindVsync Kind = iota
	KindHotplug
	KindConfigChanged
)

func (k Kind) String() string {
	switch k {
	case KindVsync:
		return "vsync"
	case KindHotplug:
		return "hotplug"
	case KindConfigChanged:
		return "config_changed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText encodes the kind by name on the wire.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindVsync, KindHotplug, KindConfigChanged:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown event kind %d", uint8(k))
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "vsync":
		*k = KindVsync
	case "hotplug":
		*k = KindHotplug
	case "config_changed":
		*k = KindConfigChanged
	default:
		return fmt.Errorf("unknown event kind %q", b)
	}
	return nil
}

// Event is one notification from the display pipeline. Timestamp and
// VsyncPeriod are monotonic nanoseconds.
type Event struct {
	Kind      Kind   `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	DisplayID uint64 `json:"display_id"`

	// vsync
	Count uint32 `json:"count,omitempty"`

	// hotplug
	Connected bool `json:"connected,omitempty"`

	// config changed
	ConfigID    int32 `json:"config_id,omitempty"`
	VsyncPeriod int64 `json:"vsync_period,omitempty"`
}
