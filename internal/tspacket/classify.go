package tspacket

// classifyPID inspects a payload-unit-start packet's payload prefix for a
// PES start code and stream-id byte, per spec.md §4.4 "PID classification".
// Returns KindUnknown if the prefix doesn't match a recognized pattern.
func classifyPID(payload []byte) StreamKind {
	if len(payload) < 4 {
		return KindUnknown
	}
	if payload[0] != 0x00 || payload[1] != 0x00 || payload[2] != 0x01 {
		return KindUnknown
	}
	streamID := payload[3]
	switch {
	case streamID >= 0xE0 && streamID <= 0xEF:
		return KindVideo
	case streamID >= 0xC0 && streamID <= 0xDF:
		return KindAudio
	default:
		return KindUnknown
	}
}
