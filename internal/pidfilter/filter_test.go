package pidfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelstream/corerelay/internal/tspacket"
)

func newTestFilter(mode Mode, discMode DiscontinuityMode) *Filter {
	return New(Config{
		Mode:                mode,
		DiscontinuityMode:   discMode,
		Allow:               map[int]struct{}{0x100: {}},
		Block:               map[int]struct{}{0x200: {}},
		AutoDetectThreshold: 0.05,
	})
}

func pidPacket(pid int, disc bool, kind tspacket.StreamKind) tspacket.Packet {
	return tspacket.Packet{PID: pid, DiscontinuityIndicator: disc, Kind: kind}
}

func pidPacketWithContinuity(pid int, continuity tspacket.ContinuityResult) tspacket.Packet {
	return tspacket.Packet{PID: pid, Continuity: continuity}
}

func TestDecide_AllowList(t *testing.T) {
	f := newTestFilter(ModeAllowList, DiscontinuityPassThrough)
	assert.True(t, f.Decide(pidPacket(0x100, false, tspacket.KindUnknown)))
	assert.False(t, f.Decide(pidPacket(0x999, false, tspacket.KindUnknown)))
}

func TestDecide_BlockList(t *testing.T) {
	f := newTestFilter(ModeBlockList, DiscontinuityPassThrough)
	assert.True(t, f.Decide(pidPacket(0x100, false, tspacket.KindUnknown)))
	assert.False(t, f.Decide(pidPacket(0x200, false, tspacket.KindUnknown)))
}

func TestDecide_DiscontinuityFilterOut(t *testing.T) {
	f := newTestFilter(ModeBlockList, DiscontinuityFilterOut)
	assert.False(t, f.Decide(pidPacket(0x100, true, tspacket.KindUnknown)))
}

func TestDecide_DiscontinuitySmartDropsNonEssential(t *testing.T) {
	f := newTestFilter(ModeBlockList, DiscontinuitySmart)
	assert.False(t, f.Decide(pidPacket(0x100, true, tspacket.KindUnknown)))
	assert.True(t, f.Decide(pidPacket(0x100, true, tspacket.KindVideo)))
	assert.True(t, f.Decide(pidPacket(tspacket.PIDPAT, true, tspacket.KindUnknown)))
}

func TestDecide_AutoDetectBlocksAfterThreshold(t *testing.T) {
	f := newTestFilter(ModeAutoDetect, DiscontinuityPassThrough)
	for i := 0; i < 99; i++ {
		require.True(t, f.Decide(pidPacket(0x300, true, tspacket.KindUnknown)))
	}
	// The 100th packet crosses minAutoDetectSamples with a discontinuity
	// rate well above threshold, so the PID is auto-blocked as of this call.
	assert.False(t, f.Decide(pidPacket(0x300, false, tspacket.KindUnknown)))
	// Subsequent packets on the PID stay blocked.
	assert.False(t, f.Decide(pidPacket(0x300, false, tspacket.KindUnknown)))
}

func TestDecide_AutoDetectStaysOpenBelowThreshold(t *testing.T) {
	f := newTestFilter(ModeAutoDetect, DiscontinuityPassThrough)
	for i := 0; i < 150; i++ {
		require.True(t, f.Decide(pidPacket(0x400, false, tspacket.KindUnknown)))
	}
}

func TestStats_ReportsPerPID(t *testing.T) {
	f := newTestFilter(ModeAllowList, DiscontinuityPassThrough)
	f.Decide(pidPacket(0x100, true, tspacket.KindUnknown))
	f.Decide(pidPacket(0x100, false, tspacket.KindUnknown))

	stats := f.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 0x100, stats[0].PID)
	assert.Equal(t, uint64(2), stats[0].Packets)
	assert.Equal(t, uint64(1), stats[0].Discontinuities)
}

func TestStats_ReportsContinuityErrors(t *testing.T) {
	f := newTestFilter(ModeAllowList, DiscontinuityPassThrough)
	f.Decide(pidPacketWithContinuity(0x100, tspacket.ContinuityOK))
	f.Decide(pidPacketWithContinuity(0x100, tspacket.ContinuityError))

	stats := f.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(1), stats[0].Errors)
	assert.True(t, stats[0].ContinuityError)
}

func TestIsEssential_PATOnlyNotCAT(t *testing.T) {
	assert.True(t, isEssential(tspacket.PIDPAT))
	assert.False(t, isEssential(tspacket.PIDCAT))
}
