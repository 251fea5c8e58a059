package cc1101

import (
	"bytes"
	"fmt"
)

// Packet is a single radio packet. It is immutable once constructed:
// received packets are owned by the caller after delivery.
type Packet struct {
	Payload []byte
	RSSI    int  // signal strength in dBm, receive only
	LQI     byte // link quality indication, receive only
	Valid   bool // CRC check result; always true when CRC is disabled
}

// crc16 computes the CRC-16 used by the CC1101 packet engine
// (polynomial 0x8005, initial value 0xFFFF, datasheet section 15.2).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bit := (b>>uint(i))&1 == 1
			msb := crc&0x8000 != 0
			crc <<= 1
			if bit != msb {
				crc ^= 0x8005
			}
		}
	}
	return crc
}

// framer assembles packets from the raw receive byte stream and frames
// payloads for transmit. Partial packets persist in the accumulator
// across drain cycles.
type framer struct {
	fixed  bool
	length int // fixed packet length, or maximum payload length
	crc    bool

	acc  bytes.Buffer // body of the packet being assembled
	need int          // body size of the current packet; 0 = hunting for a header
}

func newFramer(v *ValidatedConfig) *framer {
	return &framer{fixed: v.FixedLength, length: v.PacketLength, crc: v.CRC}
}

// bodySize returns the on-air frame size for a payload length, excluding
// the length byte.
func (f *framer) bodySize(payload int) int {
	if f.crc {
		return payload + 2
	}
	return payload
}

// feed consumes one drain cycle's bytes and returns any packets completed.
// In variable-length mode the length byte counts the packet body including
// the trailing CRC. An implausible length yields a FrameError: the framer
// has already resynchronized, the bytes are consumed, and the stream
// continues.
func (f *framer) feed(b []byte) ([]Packet, error) {
	var packets []Packet
	var frameErr error
	for len(b) > 0 {
		if f.need == 0 {
			if f.fixed {
				f.need = f.bodySize(f.length)
			} else {
				l := int(b[0])
				b = b[1:]
				if l < f.bodySize(1) || l > f.bodySize(f.length) {
					// Reject and hunt for the next plausible header.
					if frameErr == nil {
						frameErr = &FrameError{Declared: l, Min: f.bodySize(1), Max: f.bodySize(f.length)}
					}
					continue
				}
				f.need = l
			}
		}
		n := f.need - f.acc.Len()
		if n > len(b) {
			n = len(b)
		}
		f.acc.Write(b[:n])
		b = b[n:]
		if f.acc.Len() == f.need {
			packets = append(packets, f.complete())
		}
	}
	return packets, frameErr
}

// complete turns the accumulated body into a Packet. A CRC failure is
// reported on the validity flag; the payload is delivered either way and
// the caller decides whether to keep it.
func (f *framer) complete() Packet {
	body := make([]byte, f.acc.Len())
	copy(body, f.acc.Bytes())
	f.acc.Reset()
	f.need = 0
	if !f.crc {
		return Packet{Payload: body, Valid: true}
	}
	n := len(body) - 2
	return Packet{
		Payload: body[:n],
		Valid:   crc16(body[:n]) == unmarshalUint16(body[n:]),
	}
}

// frame produces the on-air frame for a payload: a length byte counting
// the body in variable-length mode, the payload, and a trailing CRC-16
// when enabled.
func (f *framer) frame(payload []byte) ([]byte, error) {
	if f.fixed {
		if len(payload) != f.length {
			return nil, fmt.Errorf("frame: payload length %d, configured fixed length %d",
				len(payload), f.length)
		}
	} else {
		if len(payload) == 0 {
			return nil, fmt.Errorf("frame: empty payload")
		}
		if len(payload) > f.length {
			return nil, &FrameError{Declared: len(payload), Min: 1, Max: f.length}
		}
	}
	out := make([]byte, 0, 1+f.bodySize(len(payload)))
	if !f.fixed {
		out = append(out, byte(f.bodySize(len(payload))))
	}
	out = append(out, payload...)
	if f.crc {
		out = append(out, marshalUint16(crc16(payload))...)
	}
	return out, nil
}

// pending reports whether a partial packet is buffered.
func (f *framer) pending() bool {
	return f.need != 0 || f.acc.Len() != 0
}
