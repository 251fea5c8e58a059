package cc1101

import (
	"fmt"
	"time"
)

// fifoWindow is a snapshot of a hardware FIFO's state, valid for a single
// poll cycle.
type fifoWindow struct {
	count     int
	overflow  bool
	underflow bool
}

func readRXWindow(dev Device) (fifoWindow, error) {
	v, err := dev.ReadRegister(RXBYTES)
	if err != nil {
		return fifoWindow{}, err
	}
	return fifoWindow{
		count:    int(v & fifoCountMask),
		overflow: v&rxFIFOOverflow != 0,
	}, nil
}

func readTXWindow(dev Device) (fifoWindow, error) {
	v, err := dev.ReadRegister(TXBYTES)
	if err != nil {
		return fifoWindow{}, err
	}
	return fifoWindow{
		count:     int(v & fifoCountMask),
		underflow: v&txFIFOUnderflow != 0,
	}, nil
}

// drainRX reads the bytes present in the RX FIFO at the start of the cycle,
// up to max. An overflow means the hardware dropped the tail of the stream
// since the last good drain; that is reported, never silently absorbed.
func drainRX(dev Device, max int) ([]byte, error) {
	w, err := readRXWindow(dev)
	if err != nil {
		return nil, err
	}
	if w.overflow {
		return nil, fmt.Errorf("%w: %d bytes held, stream tail lost", ErrRXOverflow, w.count)
	}
	n := w.count
	if n > max {
		n = max
	}
	if n == 0 {
		return nil, nil
	}
	return dev.ReadFIFO(n)
}

// fillTX writes as much of b as currently fits in the TX FIFO and returns
// the count accepted. An underflow mid-packet aborts the transmission;
// bytes already sent are never retried.
func fillTX(dev Device, b []byte) (int, error) {
	w, err := readTXWindow(dev)
	if err != nil {
		return 0, err
	}
	if w.underflow {
		return 0, fmt.Errorf("%w: transmission aborted", ErrTXUnderflow)
	}
	space := fifoSize - w.count
	if space <= 0 {
		return 0, nil
	}
	if len(b) > space {
		b = b[:space]
	}
	return dev.WriteFIFO(b)
}

// Poll cadence bounds. The upper bound per configuration is the time the
// air interface takes to move half the FIFO, so the hardware cannot wrap
// between two cycles.
const (
	minPollInterval = 500 * time.Microsecond
	maxPollInterval = 50 * time.Millisecond
)

func pollIntervalFor(v *ValidatedConfig) time.Duration {
	interval := v.byteTime() * fifoSize / 2
	if interval < minPollInterval {
		interval = minPollInterval
	}
	if interval > maxPollInterval {
		interval = maxPollInterval
	}
	return interval
}
