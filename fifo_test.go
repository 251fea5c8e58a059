package cc1101

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestPollInterval(t *testing.T) {
	cases := []struct {
		baud uint32
		want time.Duration
	}{
		{500000, 512 * time.Microsecond}, // half a FIFO of byte-times
		{38400, 6666656 * time.Nanosecond},
		{600, maxPollInterval},
		{4000000, minPollInterval},
	}
	for _, c := range cases {
		vc := &ValidatedConfig{Config: Config{DataRate: c.baud}}
		if got := pollIntervalFor(vc); got != c.want {
			t.Errorf("pollIntervalFor(%d Baud) == %v, want %v", c.baud, got, c.want)
		}
	}
}

func TestDrainRX(t *testing.T) {
	d := newFakeDevice()
	d.queueRX(1, 2, 3, 4, 5, 6)

	b, err := drainRX(d, 4)
	if err != nil {
		t.Fatalf("drainRX: %v", err)
	}
	if !bytes.Equal(b, []byte{1, 2, 3, 4}) {
		t.Errorf("drained % X, want 01 02 03 04", b)
	}
	b, err = drainRX(d, fifoSize)
	if err != nil {
		t.Fatalf("drainRX: %v", err)
	}
	if !bytes.Equal(b, []byte{5, 6}) {
		t.Errorf("drained % X, want 05 06", b)
	}
	b, err = drainRX(d, fifoSize)
	if err != nil || b != nil {
		t.Errorf("drain of an empty FIFO: (% X, %v)", b, err)
	}
}

func TestDrainRXOverflow(t *testing.T) {
	d := newFakeDevice()
	d.queueRX(1, 2, 3)
	d.rxOverflow = true
	if _, err := drainRX(d, fifoSize); !errors.Is(err, ErrRXOverflow) {
		t.Errorf("drainRX: %v, want ErrRXOverflow", err)
	}
}

func TestFillTX(t *testing.T) {
	d := newFakeDevice()
	n, err := fillTX(d, []byte{1, 2, 3})
	if err != nil || n != 3 {
		t.Fatalf("fillTX: (%d, %v), want (3, nil)", n, err)
	}

	d.tx = make([]byte, fifoSize-4)
	n, err = fillTX(d, []byte{1, 2, 3, 4, 5, 6})
	if err != nil || n != 4 {
		t.Errorf("fillTX into a nearly full FIFO: (%d, %v), want (4, nil)", n, err)
	}

	d.tx = make([]byte, fifoSize)
	n, err = fillTX(d, []byte{1})
	if err != nil || n != 0 {
		t.Errorf("fillTX into a full FIFO: (%d, %v), want (0, nil)", n, err)
	}
}

func TestFillTXUnderflow(t *testing.T) {
	d := newFakeDevice()
	d.txUnderflow = true
	if _, err := fillTX(d, []byte{1}); !errors.Is(err, ErrTXUnderflow) {
		t.Errorf("fillTX: %v, want ErrTXUnderflow", err)
	}
}
