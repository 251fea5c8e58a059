package cc1101

import (
	"log"
	"time"
)

const (
	defaultTimeout = 50 * time.Millisecond

	ioRetries    = 3
	ioRetryDelay = 5 * time.Millisecond

	verbose   = false
	verboseIO = false
)

func init() {
	if verbose || verboseIO {
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.LUTC)
	}
}

// Device is the sole point of contact with the transceiver hardware.
// Implementations are synchronous and may block on the underlying handle,
// bounded by its timeout. Every returned error wraps one of the I/O
// sentinels; ErrBusy and ErrTimeout have already been retried a bounded
// number of times before they are returned.
//
// A Device must not be accessed from two goroutines at once; the mode
// controller serializes all access.
type Device interface {
	// ReadRegister returns the value of a configuration or status register.
	ReadRegister(addr byte) (byte, error)

	// ReadRegisters reads the given registers into a RegisterMap.
	ReadRegisters(addrs []byte) (RegisterMap, error)

	// WriteRegisters writes a register image in ascending address order.
	WriteRegisters(regs RegisterMap) error

	// ReadFIFO drains up to max bytes from the RX FIFO.
	ReadFIFO(max int) ([]byte, error)

	// WriteFIFO appends bytes to the TX FIFO and returns the count accepted.
	WriteFIFO(b []byte) (int, error)

	// Strobe issues a command strobe and returns the chip status byte.
	Strobe(s Strobe) (byte, error)

	// Reset returns the chip to its power-on state.
	Reset() error

	Close() error
}

// withRetry runs op, retrying transient failures a bounded number of times.
func withRetry(op func() error) error {
	var err error
	for i := 0; i < ioRetries; i++ {
		err = op()
		if err == nil || !isTransientIO(err) {
			return err
		}
		time.Sleep(ioRetryDelay)
	}
	return err
}
