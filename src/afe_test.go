package heartwolf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus records every transfer and answers reads from a queue.
type fakeBus struct {
	sent    [][]byte
	replies [][]byte
	failOn  int // 1 based transfer number to fail, 0 for never.
}

func (b *fakeBus) Tx(w, r []byte) error {
	b.sent = append(b.sent, append([]byte(nil), w...))
	if b.failOn == len(b.sent) {
		return errors.New("bus error")
	}
	if len(b.replies) > 0 {
		copy(r, b.replies[0])
		b.replies = b.replies[1:]
	}
	return nil
}

type fakePin struct {
	value   int
	history []int
}

func (p *fakePin) Value() (int, error) {
	return p.value, nil
}

func (p *fakePin) SetValue(v int) error {
	p.value = v
	p.history = append(p.history, v)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestAFE(bus *fakeBus) (*ADS1292R, *fakePin, *fakePin, *fakePin) {
	var drdy, pwdn, start = &fakePin{value: 1}, &fakePin{}, &fakePin{}
	var a = NewADS1292R(bus, drdy, pwdn, start, ADS1292RConfig{Sleep: noSleep})
	return a, drdy, pwdn, start
}

func TestMergeRegister(t *testing.T) {
	assert.Equal(t, byte(0x02), mergeRegister(REG_RESP1, 0x00), "RESP1 bit 1 is always set")
	assert.Equal(t, byte(0xF2), mergeRegister(REG_RESP1, 0xF2))
	assert.Equal(t, byte(0x80), mergeRegister(REG_CONFIG2, 0x04), "CONFIG2 bit 2 reserved, bit 7 forced")
	assert.Equal(t, byte(0x10), mergeRegister(REG_LOFF, 0x02))
	assert.Equal(t, byte(0x01), mergeRegister(REG_RESP2, 0x78))
	assert.Equal(t, byte(0x03), mergeRegister(REG_RESP2, 0x03))
	assert.Equal(t, byte(0x0F), mergeRegister(REG_GPIO, 0xFF))
	assert.Equal(t, byte(0x5F), mergeRegister(REG_LOFF_STAT, 0xFF))
	assert.Equal(t, byte(0x3F), mergeRegister(REG_LOFF_SENS, 0xFF))
	assert.Equal(t, byte(0x87), mergeRegister(REG_CONFIG1, 0xFF))

	// No reserved bits.
	assert.Equal(t, byte(0xFF), mergeRegister(REG_CH1SET, 0xFF))
	assert.Equal(t, byte(0xAB), mergeRegister(REG_RLD_SENS, 0xAB))
}

func TestADS1292RInit(t *testing.T) {
	var bus = &fakeBus{}
	var a, _, pwdn, start = newTestAFE(bus)

	require.NoError(t, a.Init(context.Background()))

	assert.Equal(t, []int{1, 0, 1}, pwdn.history)
	assert.Equal(t, []int{0, 1, 0, 1}, start.history)

	var want = [][]byte{{ADS_START}, {ADS_STOP}, {ADS_SDATAC}}
	for _, w := range DefaultRegisterProgram {
		want = append(want, []byte{ADS_WREG | w.Addr, 0x00, mergeRegister(w.Addr, w.Value)})
	}
	want = append(want, []byte{ADS_RDATAC})

	assert.Equal(t, want, bus.sent)
}

func TestADS1292RInitFailure(t *testing.T) {
	var bus = &fakeBus{failOn: 4} // First register write.
	var a, _, _, _ = newTestAFE(bus)

	var err = a.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write register 0x01")
}

func TestADS1292RInitCancelled(t *testing.T) {
	var bus = &fakeBus{}
	var drdy, pwdn, start = &fakePin{}, &fakePin{}, &fakePin{}
	var a = NewADS1292R(bus, drdy, pwdn, start, ADS1292RConfig{})

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, a.Init(ctx), context.Canceled)
}

func TestADS1292RReady(t *testing.T) {
	var a, drdy, _, _ = newTestAFE(&fakeBus{})

	var ready, err = a.Ready()
	require.NoError(t, err)
	assert.False(t, ready, "DRDY high")

	drdy.value = 0
	ready, err = a.Ready()
	require.NoError(t, err)
	assert.True(t, ready, "DRDY low")
}

func TestADS1292RReadFrame(t *testing.T) {
	var want = EncodeFrame(STATUS_PREAMBLE, 123, -456)
	var bus = &fakeBus{replies: [][]byte{want[:]}}
	var a, _, _, _ = newTestAFE(bus)

	var f, err = a.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, want, f)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, bus.sent[0])
}

func TestADS1292RReadRegister(t *testing.T) {
	var bus = &fakeBus{replies: [][]byte{{0, 0, 0x73}}}
	var a, _, _, _ = newTestAFE(bus)

	var v, err = a.ReadRegister(REG_ID)
	require.NoError(t, err)
	assert.Equal(t, byte(0x73), v)
	assert.Equal(t, []byte{ADS_RREG, 0x00, ADS_DUMMY_BYTE}, bus.sent[0])
}

func TestADS1292RStopAndClose(t *testing.T) {
	var bus = &fakeBus{}
	var a, _, _, start = newTestAFE(bus)

	var order []string
	a.OnClose(func() error { order = append(order, "spi"); return nil })
	a.OnClose(func() error { order = append(order, "gpio"); return nil })

	require.NoError(t, a.Stop())
	assert.Equal(t, []byte{ADS_SDATAC}, bus.sent[0])
	assert.Equal(t, 0, start.value)

	require.NoError(t, a.Close())
	assert.Equal(t, []string{"gpio", "spi"}, order, "released in reverse")
}

func TestADS1292RDrivesPipeline(t *testing.T) {
	var frames = [][]byte{}
	for i := 0; i < 3; i++ {
		var f = EncodeFrame(STATUS_PREAMBLE, int32(i), int32(i*256))
		frames = append(frames, f[:])
	}

	var bus = &fakeBus{replies: frames}
	var a, drdy, _, _ = newTestAFE(bus)
	var p = newTestPipeline(t, a)

	var _, ok, err = p.PollSample()
	require.NoError(t, err)
	assert.False(t, ok)

	drdy.value = 0
	for i := 0; i < 3; i++ {
		var s, ok, err = p.PollSample()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int32(i*256), s.Channels[1])
	}
}
