package tspacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPID_Video(t *testing.T) {
	assert.Equal(t, KindVideo, classifyPID([]byte{0x00, 0x00, 0x01, 0xE0, 0x00}))
}

func TestClassifyPID_Audio(t *testing.T) {
	assert.Equal(t, KindAudio, classifyPID([]byte{0x00, 0x00, 0x01, 0xC0, 0x00}))
}

func TestClassifyPID_UnrecognizedStreamID(t *testing.T) {
	assert.Equal(t, KindUnknown, classifyPID([]byte{0x00, 0x00, 0x01, 0xBD, 0x00}))
}

func TestClassifyPID_NoPESPrefix(t *testing.T) {
	assert.Equal(t, KindUnknown, classifyPID([]byte{0x47, 0x11, 0x22, 0x33}))
}

func TestClassifyPID_TooShort(t *testing.T) {
	assert.Equal(t, KindUnknown, classifyPID([]byte{0x00, 0x00}))
}
