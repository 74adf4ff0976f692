package tspacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func makePacket(pid int, payloadUnitStart bool, continuityCounter uint8, payload []byte) []byte {
	raw := make([]byte, PacketSize)
	raw[0] = SyncByte
	raw[1] = byte(pid >> 8 & 0x1F)
	if payloadUnitStart {
		raw[1] |= 0x40
	}
	raw[2] = byte(pid & 0xFF)
	raw[3] = 0x10 | (continuityCounter & 0x0F) // payload-only adaptation field control
	copy(raw[4:], payload)
	return raw
}

func TestParseHeader_BasicFields(t *testing.T) {
	raw := makePacket(0x100, true, 7, []byte{0x00, 0x00, 0x01, 0xE0})
	p := ParseHeader(raw)
	assert.True(t, p.SyncValid)
	assert.Equal(t, 0x100, p.PID)
	assert.True(t, p.PayloadUnitStart)
	assert.Equal(t, uint8(7), p.ContinuityCounter)
	assert.False(t, p.AdaptationFieldPresent)
}

func TestParseHeader_InvalidSync(t *testing.T) {
	raw := make([]byte, PacketSize)
	raw[0] = 0x00
	p := ParseHeader(raw)
	assert.False(t, p.SyncValid)
}

func TestParseHeader_AdaptationFieldDiscontinuity(t *testing.T) {
	raw := make([]byte, PacketSize)
	raw[0] = SyncByte
	raw[3] = 0x30 // adaptation field + payload present
	raw[4] = 0x01 // adaptation field length
	raw[5] = 0x80 // discontinuity indicator bit set
	p := ParseHeader(raw)
	assert.True(t, p.AdaptationFieldPresent)
	assert.True(t, p.DiscontinuityIndicator)
}

func TestParseHeader_ZeroLengthAdaptationFieldNoDiscontinuity(t *testing.T) {
	raw := make([]byte, PacketSize)
	raw[0] = SyncByte
	raw[3] = 0x20 // adaptation-field-only, length 0
	raw[4] = 0x00
	p := ParseHeader(raw)
	assert.True(t, p.AdaptationFieldPresent)
	assert.False(t, p.DiscontinuityIndicator)
}

func TestPayload_PayloadOnly(t *testing.T) {
	raw := makePacket(0x101, true, 0, []byte{0xAA, 0xBB, 0xCC})
	p := ParseHeader(raw)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, p.Payload()[:3])
}

func TestPayload_AdaptationFieldOnlyHasNoPayload(t *testing.T) {
	raw := make([]byte, PacketSize)
	raw[0] = SyncByte
	raw[3] = 0x20
	raw[4] = 183
	p := ParseHeader(raw)
	assert.False(t, p.HasPayload())
	assert.Nil(t, p.Payload())
}
