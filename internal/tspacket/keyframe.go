package tspacket

// isKeyFrame scans the early payload bytes of a video packet for an
// MPEG-2 I-frame start pattern or an H.264 IDR NAL unit, per spec.md §4.4's
// key-frame heuristic. This is a diagnostic heuristic, not a full slice
// header parse: it scans for start codes within the given window and
// checks the immediately following byte(s).
func isKeyFrame(payload []byte) bool {
	for i := 0; i+3 < len(payload); i++ {
		if payload[i] != 0x00 || payload[i+1] != 0x00 || payload[i+2] != 0x01 {
			continue
		}
		code := payload[i+3]

		// H.264 NAL unit: low 5 bits of the byte after the start code are
		// the nal_unit_type; 5 is IDR.
		if code&0x1F == 0x05 {
			return true
		}

		// MPEG-2 picture start code (0x00) is followed by a 10-bit
		// temporal_reference and then a 3-bit picture_coding_type (bits
		// 5-3 of the second byte after the code); type 1 is I-frame.
		if code == 0x00 && i+5 < len(payload) {
			pictureCodingType := (payload[i+5] >> 3) & 0x07
			if pictureCodingType == 0x01 {
				return true
			}
		}
	}
	return false
}
