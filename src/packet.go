package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Result packets sent to the host over a serial link,
 *		pseudo terminal or TCP.
 *
 * Description: The framing is the one the existing host software
 *		understands:
 *
 *			0x0A 0xFA	Start.
 *			len		Payload length.
 *			0x00
 *			type		0x02 for data.
 *			payload		len bytes.
 *			0x00
 *			0x0B		Stop.
 *
 *		A data payload is 9 bytes, little endian:
 *
 *			int16	filtered ECG
 *			int16	respiration wave
 *			uint16	breath rate
 *			uint16	heart rate
 *			uint8	status, bit 0 = lead off
 *
 *		There is no checksum.  The receiver relies on the start
 *		and stop bytes and the fixed length to stay in sync.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const PKT_START_1 = 0x0A
const PKT_START_2 = 0xFA
const PKT_STOP = 0x0B

const PKT_TYPE_DATA = 0x02

const VITALS_PAYLOAD_LEN = 9

const PKT_OVERHEAD = 7

const STATUS_BIT_LEAD_OFF = 0x01

var ErrBadPacket = errors.New("bad packet")

// VitalsPayload is the decoded form of a data packet.
type VitalsPayload struct {
	ECG        int16
	Resp       int16
	BreathRate uint16
	HeartRate  uint16
	LeadOff    bool
}

func PayloadFromVitals(v Vitals) VitalsPayload {
	return VitalsPayload{
		ECG:        v.ECG,
		Resp:       int16(clampInt64(int64(v.Resp), math.MinInt16, math.MaxInt16)),
		BreathRate: uint16(clampInt64(int64(v.BreathRate), 0, math.MaxUint16)),
		HeartRate:  uint16(clampInt64(int64(v.HeartRate), 0, math.MaxUint16)),
		LeadOff:    v.LeadOff,
	}
}

// EncodePacket wraps a payload in start/length/type/stop bytes.
func EncodePacket(pktType byte, payload []byte) []byte {
	var out = make([]byte, 0, len(payload)+PKT_OVERHEAD)

	out = append(out, PKT_START_1, PKT_START_2, byte(len(payload)), 0x00, pktType)
	out = append(out, payload...)
	out = append(out, 0x00, PKT_STOP)

	return out
}

func EncodeVitalsPacket(v VitalsPayload) []byte {
	var p [VITALS_PAYLOAD_LEN]byte

	binary.LittleEndian.PutUint16(p[0:], uint16(v.ECG))
	binary.LittleEndian.PutUint16(p[2:], uint16(v.Resp))
	binary.LittleEndian.PutUint16(p[4:], v.BreathRate)
	binary.LittleEndian.PutUint16(p[6:], v.HeartRate)
	if v.LeadOff {
		p[8] |= STATUS_BIT_LEAD_OFF
	}

	return EncodePacket(PKT_TYPE_DATA, p[:])
}

func ParseVitalsPayload(p []byte) (VitalsPayload, error) {
	if len(p) != VITALS_PAYLOAD_LEN {
		return VitalsPayload{}, fmt.Errorf("%w: vitals payload is %d bytes, want %d", ErrBadPacket, len(p), VITALS_PAYLOAD_LEN)
	}

	return VitalsPayload{
		ECG:        int16(binary.LittleEndian.Uint16(p[0:])),
		Resp:       int16(binary.LittleEndian.Uint16(p[2:])),
		BreathRate: binary.LittleEndian.Uint16(p[4:]),
		HeartRate:  binary.LittleEndian.Uint16(p[6:]),
		LeadOff:    p[8]&STATUS_BIT_LEAD_OFF != 0,
	}, nil
}

type pktState int

const (
	PS_START_1 pktState = iota // Must be 0 so a zero PacketDecoder is ready to go.
	PS_START_2
	PS_LEN
	PS_ZERO_1
	PS_TYPE
	PS_PAYLOAD
	PS_ZERO_2
	PS_STOP
)

// Packet is one complete frame pulled out of the byte stream.
type Packet struct {
	Type    byte
	Payload []byte
}

// PacketDecoder reassembles packets from a byte stream that may start
// mid-packet or contain line noise.
type PacketDecoder struct {
	state   pktState
	pktType byte
	length  int
	payload []byte

	raw []byte // Everything since the start byte of the packet in progress.

	Discarded int // Bytes that turned out not to be part of any packet.
}

/*-------------------------------------------------------------------
 *
 * Name:        Feed
 *
 * Purpose:     Process received bytes.
 *
 * Inputs:	data	- Whatever the last read returned.
 *
 * Returns:	Complete packets, in order.  Partial packets are kept
 *		until the next call.
 *
 * Description:	Anything that doesn't fit the framing means the start
 *		byte we locked on to was a false start.  That one byte
 *		is thrown away and everything after it is scanned again,
 *		so a truncated packet can't swallow the good one behind it.
 *
 *--------------------------------------------------------------------*/

func (d *PacketDecoder) Feed(data []byte) []Packet {
	var out []Packet

	for _, b := range data {
		out = d.step(b, out)
	}

	return out
}

func (d *PacketDecoder) step(b byte, out []Packet) []Packet {
	if d.state == PS_START_1 {
		if b == PKT_START_1 {
			d.raw = append(d.raw[:0], b)
			d.state = PS_START_2
		} else {
			d.Discarded++
		}
		return out
	}

	d.raw = append(d.raw, b)

	switch d.state {
	case PS_START_2:
		if b != PKT_START_2 {
			return d.resync(out)
		}
		d.state = PS_LEN

	case PS_LEN:
		d.length = int(b)
		d.payload = make([]byte, 0, d.length)
		d.state = PS_ZERO_1

	case PS_ZERO_1:
		if b != 0 {
			return d.resync(out)
		}
		d.state = PS_TYPE

	case PS_TYPE:
		d.pktType = b
		if d.length == 0 {
			d.state = PS_ZERO_2
		} else {
			d.state = PS_PAYLOAD
		}

	case PS_PAYLOAD:
		d.payload = append(d.payload, b)
		if len(d.payload) == d.length {
			d.state = PS_ZERO_2
		}

	case PS_ZERO_2:
		if b != 0 {
			return d.resync(out)
		}
		d.state = PS_STOP

	case PS_STOP:
		if b != PKT_STOP {
			return d.resync(out)
		}
		out = append(out, Packet{Type: d.pktType, Payload: d.payload})
		d.payload = nil
		d.raw = d.raw[:0]
		d.state = PS_START_1
	}

	return out
}

func (d *PacketDecoder) resync(out []Packet) []Packet {
	var replay = append([]byte(nil), d.raw[1:]...)

	d.Discarded++
	d.raw = d.raw[:0]
	d.payload = nil
	d.state = PS_START_1

	for _, b := range replay {
		out = d.step(b, out)
	}
	return out
}
