package tspacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKeyFrame_H264IDR(t *testing.T) {
	// start code + NAL header byte with nal_unit_type=5 (IDR)
	payload := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84}
	assert.True(t, isKeyFrame(payload))
}

func TestIsKeyFrame_H264NonIDR(t *testing.T) {
	payload := []byte{0x00, 0x00, 0x00, 0x01, 0x61, 0x88, 0x84} // type 1, non-IDR
	assert.False(t, isKeyFrame(payload))
}

func TestIsKeyFrame_MPEG2IFrame(t *testing.T) {
	// picture start code 0x00, picture_coding_type bits set to 1 (I-frame)
	payload := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x08}
	assert.True(t, isKeyFrame(payload))
}

func TestIsKeyFrame_NoStartCode(t *testing.T) {
	payload := []byte{0x12, 0x34, 0x56, 0x78}
	assert.False(t, isKeyFrame(payload))
}

func TestIsKeyFrame_EmptyPayload(t *testing.T) {
	assert.False(t, isKeyFrame(nil))
}
