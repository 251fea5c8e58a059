package cc1101

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCRC16(t *testing.T) {
	// Check value for poly 0x8005, init 0xFFFF, no reflection.
	if c := crc16([]byte("123456789")); c != 0xAEE7 {
		t.Errorf("crc16 check value %04X, want AEE7", c)
	}
}

func variableFramer() *framer {
	return &framer{length: 60, crc: true}
}

// wire builds the on-air byte sequence for a payload, as the transmit
// path would produce it.
func wire(t *testing.T, f *framer, payload []byte) []byte {
	t.Helper()
	b, err := f.frame(payload)
	if err != nil {
		t.Fatalf("frame(% X): %v", payload, err)
	}
	return b
}

func TestFeedSinglePacket(t *testing.T) {
	f := variableFramer()
	b := wire(t, f, []byte("hello"))
	if b[0] != 7 { // 5 payload bytes plus CRC-16
		t.Fatalf("length byte %d, want 7", b[0])
	}
	packets, err := f.feed(b)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("got %d packets, want 1", len(packets))
	}
	p := packets[0]
	if !bytes.Equal(p.Payload, []byte("hello")) {
		t.Errorf("payload % X, want %q", p.Payload, "hello")
	}
	if !p.Valid {
		t.Error("packet marked invalid")
	}
}

func TestFeedWithoutCRC(t *testing.T) {
	// Without a CRC the length byte counts exactly the payload.
	f := &framer{length: 60}
	packets, err := f.feed([]byte{3, 0xA1, 0xA2, 0xA3})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(packets) != 1 || len(packets[0].Payload) != 3 {
		t.Fatalf("packets %v, want one 3-byte packet", packets)
	}
	if !packets[0].Valid {
		t.Error("packet marked invalid with CRC disabled")
	}

	packets, err = f.feed([]byte{61})
	if err == nil {
		t.Fatal("length byte beyond the maximum accepted")
	}
	if len(packets) != 0 {
		t.Errorf("oversized declaration produced packets: %v", packets)
	}
}

func TestFeedSplitAcrossDrains(t *testing.T) {
	f := variableFramer()
	b := wire(t, f, []byte("split across cycles"))
	var got []Packet
	for _, chunk := range [][]byte{b[:1], b[1:4], b[4 : len(b)-1], b[len(b)-1:]} {
		packets, err := f.feed(chunk)
		if err != nil {
			t.Fatalf("feed: %v", err)
		}
		got = append(got, packets...)
		if len(got) == 0 && !f.pending() {
			t.Fatal("framer lost its partial packet between drains")
		}
	}
	if len(got) != 1 || !bytes.Equal(got[0].Payload, []byte("split across cycles")) {
		t.Fatalf("got %d packets: %v", len(got), got)
	}
}

func TestFeedMultiplePackets(t *testing.T) {
	f := variableFramer()
	b := append(wire(t, f, []byte("one")), wire(t, f, []byte("two"))...)
	packets, err := f.feed(b)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("got %d packets, want 2", len(packets))
	}
	if !bytes.Equal(packets[0].Payload, []byte("one")) || !bytes.Equal(packets[1].Payload, []byte("two")) {
		t.Errorf("payloads % X / % X", packets[0].Payload, packets[1].Payload)
	}
}

func TestFeedImplausibleLength(t *testing.T) {
	f := variableFramer()
	good := wire(t, f, []byte("ok"))
	for _, bad := range []byte{0x00, 0xFF} {
		packets, err := f.feed(append([]byte{bad}, good...))
		if err == nil {
			t.Fatalf("length byte %02X accepted", bad)
		}
		var fe *FrameError
		if !errors.As(err, &fe) {
			t.Fatalf("got %v, want a FrameError", err)
		}
		// The framer must resynchronize on the following packet.
		if len(packets) != 1 || !bytes.Equal(packets[0].Payload, []byte("ok")) {
			t.Fatalf("after bad length %02X: packets %v", bad, packets)
		}
	}
}

func TestFrameErrorBounds(t *testing.T) {
	// variableFramer accepts declared lengths 3 (one payload byte plus
	// CRC) through 62 (60 payload bytes plus CRC).
	cases := []struct {
		declared byte
		want     string
	}{
		{2, "below minimum 3"},
		{63, "exceeds maximum 62"},
	}
	for _, c := range cases {
		_, err := variableFramer().feed([]byte{c.declared})
		var fe *FrameError
		if !errors.As(err, &fe) {
			t.Fatalf("length byte %d: got %v, want a FrameError", c.declared, err)
		}
		if fe.Declared != int(c.declared) || fe.Min != 3 || fe.Max != 62 {
			t.Errorf("length byte %d: %+v, want Min 3 and Max 62", c.declared, fe)
		}
		if !strings.Contains(fe.Error(), c.want) {
			t.Errorf("length byte %d: message %q, want %q", c.declared, fe.Error(), c.want)
		}
	}
}

func TestFeedCRCFailure(t *testing.T) {
	f := variableFramer()
	b := wire(t, f, []byte("damaged"))
	b[len(b)-1] ^= 0x01
	packets, err := f.feed(b)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("got %d packets, want 1", len(packets))
	}
	p := packets[0]
	if p.Valid {
		t.Error("corrupted packet marked valid")
	}
	if !bytes.Equal(p.Payload, []byte("damaged")) {
		t.Errorf("payload % X not delivered intact", p.Payload)
	}
}

func TestFixedLengthFraming(t *testing.T) {
	f := &framer{fixed: true, length: 4, crc: true}
	first := wire(t, f, []byte{1, 2, 3, 4})
	second := wire(t, f, []byte{5, 6, 7, 8})
	second[len(second)-1] ^= 0x01
	packets, err := f.feed(append(first, second...))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("got %d packets, want 2", len(packets))
	}
	if !packets[0].Valid || !bytes.Equal(packets[0].Payload, []byte{1, 2, 3, 4}) {
		t.Errorf("first packet %v", packets[0])
	}
	if packets[1].Valid {
		t.Error("corrupted second packet marked valid")
	}
	if !bytes.Equal(packets[1].Payload, []byte{5, 6, 7, 8}) {
		t.Errorf("second payload % X", packets[1].Payload)
	}
}

func TestFrameRejectsBadPayloads(t *testing.T) {
	f := variableFramer()
	if _, err := f.frame(nil); err == nil {
		t.Error("empty payload framed")
	}
	if _, err := f.frame(make([]byte, 61)); err == nil {
		t.Error("oversized payload framed")
	}
	fixed := &framer{fixed: true, length: 4}
	if _, err := fixed.frame([]byte{1, 2, 3}); err == nil {
		t.Error("short fixed-length payload framed")
	}
}
