package cc1101

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Mode is the operating state of the radio control state machine.
type Mode int

const (
	Idle Mode = iota
	Configuring
	Receiving
	Transmitting
	Fault
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "Idle"
	case Configuring:
		return "Configuring"
	case Receiving:
		return "Receiving"
	case Transmitting:
		return "Transmitting"
	case Fault:
		return "Fault"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// After a mode strobe the frequency synthesizer calibrates and settles;
// datasheet table 34 puts IDLE to RX/TX with calibration around 800 us.
// A state is not considered entered until MARCSTATE confirms it.
const (
	settlePollInterval = 200 * time.Microsecond
	settleTimeout      = 20 * time.Millisecond
)

// errInterrupted reports that a receive or transmit loop's mode ended
// before its next poll cycle ran.
var errInterrupted = errors.New("operation interrupted")

// controller owns the device state: current mode, last applied
// configuration, and the latched fault. It serializes all hardware access;
// the polling loops take its lock for every cycle so they can never race a
// mode transition.
type controller struct {
	mu     sync.Mutex
	dev    Device
	mode   Mode
	config *ValidatedConfig // last known-good configuration
	fault  *FaultError
}

func newController(dev Device) *controller {
	return &controller{dev: dev}
}

func (c *controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *controller) lastConfig() *ValidatedConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

func (c *controller) lastFault() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault == nil {
		return nil
	}
	return c.fault
}

// enterFault latches err and forces the state machine into Fault.
// Callers must hold c.mu.
func (c *controller) enterFault(err error) error {
	c.mode = Fault
	c.fault = &FaultError{Cause: err}
	if verbose {
		log.Printf("fault: %v", err)
	}
	return c.fault
}

// isFatalIO reports whether a gateway error must latch a fault.
// Disconnected and Permission always do; Timeout has already been retried
// inside the gateway, so a surviving Timeout counts as repeated.
func isFatalIO(err error) bool {
	return errors.Is(err, ErrDisconnected) || errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrTimeout)
}

// ioError decides whether a gateway error latches a fault.
// Callers must hold c.mu.
func (c *controller) ioError(err error) error {
	if isFatalIO(err) {
		return c.enterFault(err)
	}
	return err
}

// configure applies a validated configuration. Legal only from Idle;
// a failure while writing the hardware latches a fault.
func (c *controller) configure(vc *ValidatedConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.mode {
	case Fault:
		return c.fault
	case Configuring, Receiving, Transmitting:
		return ErrRadioBusy
	}
	c.mode = Configuring
	if err := c.applyConfig(vc); err != nil {
		return c.enterFault(err)
	}
	c.mode = Idle
	c.config = vc
	return nil
}

// applyConfig writes a full register image and verifies it by reading it
// back. Callers must hold c.mu.
func (c *controller) applyConfig(vc *ValidatedConfig) error {
	if _, err := c.dev.Strobe(SIDLE); err != nil {
		return err
	}
	if err := c.awaitMARCState(marcIdle); err != nil {
		return err
	}
	regs := vc.Registers()
	if err := c.dev.WriteRegisters(regs); err != nil {
		return err
	}
	readBack, err := c.dev.ReadRegisters(regs.Addresses())
	if err != nil {
		return err
	}
	for _, addr := range regs.Addresses() {
		if readBack[addr] != regs[addr] {
			return fmt.Errorf("register %02X reads %02X after writing %02X",
				addr, readBack[addr], regs[addr])
		}
	}
	if _, err := c.dev.Strobe(SFRX); err != nil {
		return err
	}
	if _, err := c.dev.Strobe(SFTX); err != nil {
		return err
	}
	return nil
}

// startReceive moves Idle to Receiving. Receive and transmit are mutually
// exclusive: requests while either is active fail with ErrRadioBusy.
func (c *controller) startReceive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.mode {
	case Fault:
		return c.fault
	case Configuring, Receiving, Transmitting:
		return ErrRadioBusy
	}
	if c.config == nil {
		return ErrNotConfigured
	}
	if _, err := c.dev.Strobe(SRX); err != nil {
		return c.ioError(err)
	}
	if err := c.awaitMARCState(marcRX); err != nil {
		return c.enterFault(err)
	}
	c.mode = Receiving
	return nil
}

// startTransmit preloads the TX FIFO, strobes TX and waits for the radio to
// confirm it. done reports that the whole preload already left the air
// before TX could be observed, in which case the controller is back in Idle.
func (c *controller) startTransmit(preload []byte) (done bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.mode {
	case Fault:
		return false, c.fault
	case Configuring, Receiving, Transmitting:
		return false, ErrRadioBusy
	}
	if c.config == nil {
		return false, ErrNotConfigured
	}
	if _, err := c.dev.WriteFIFO(preload); err != nil {
		return false, c.ioError(err)
	}
	if _, err := c.dev.Strobe(STX); err != nil {
		return false, c.ioError(err)
	}
	done, err = c.awaitTransmitStart()
	if err != nil {
		return false, c.enterFault(err)
	}
	if done {
		if _, err := c.dev.Strobe(SFTX); err != nil && verbose {
			log.Printf("flush after transmit: %v", err)
		}
		return true, nil
	}
	c.mode = Transmitting
	return false, nil
}

// stop returns the radio to Idle with both FIFOs flushed. Stopping an
// already-idle radio is a no-op.
func (c *controller) stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *controller) stopLocked() error {
	switch c.mode {
	case Idle:
		return nil
	case Fault:
		return c.fault
	}
	if _, err := c.dev.Strobe(SIDLE); err != nil {
		return c.ioError(err)
	}
	if err := c.awaitMARCState(marcIdle); err != nil {
		return c.enterFault(err)
	}
	if _, err := c.dev.Strobe(SFRX); err != nil {
		return c.ioError(err)
	}
	if _, err := c.dev.Strobe(SFTX); err != nil {
		return c.ioError(err)
	}
	c.mode = Idle
	return nil
}

// reset recovers from a fault: the chip is reset and the last known-good
// configuration reapplied. It fails, leaving the fault latched, if the
// device is unreachable.
func (c *controller) reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dev.Reset(); err != nil {
		return c.enterFault(err)
	}
	if c.config != nil {
		c.mode = Configuring
		if err := c.applyConfig(c.config); err != nil {
			return c.enterFault(err)
		}
	}
	c.mode = Idle
	c.fault = nil
	return nil
}

// poll runs one locked hardware access on behalf of a receive or transmit
// loop, provided the controller is still in the expected mode. FIFO faults
// and fatal I/O errors latch the Fault state.
func (c *controller) poll(expect Mode, f func(Device) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != expect {
		if c.mode == Fault {
			return c.fault
		}
		return errInterrupted
	}
	if err := f(c.dev); err != nil {
		if errors.Is(err, ErrRXOverflow) || errors.Is(err, ErrTXUnderflow) || isFatalIO(err) {
			return c.enterFault(err)
		}
		return err
	}
	return nil
}

// awaitMARCState polls the radio state machine until it reaches the wanted
// state or the settle timeout expires. Callers must hold c.mu.
func (c *controller) awaitMARCState(want byte) error {
	timeout := settleTimeout
	for {
		state, err := c.dev.ReadRegister(MARCSTATE)
		if err != nil {
			return err
		}
		switch state & 0x1F {
		case want:
			return nil
		case marcRXFIFOOverflow:
			return ErrRXOverflow
		case marcTXFIFOUnderflow:
			return ErrTXUnderflow
		}
		if timeout <= 0 {
			return fmt.Errorf("%w: MARCSTATE %02X, want %02X", ErrTimeout, state&0x1F, want)
		}
		time.Sleep(settlePollInterval)
		timeout -= settlePollInterval
	}
}

// awaitTransmitStart waits for the radio to enter TX. A return to Idle with
// an empty FIFO means the whole preload was already sent; that is reported
// as done rather than an error. Callers must hold c.mu.
func (c *controller) awaitTransmitStart() (bool, error) {
	timeout := settleTimeout
	for {
		state, err := c.dev.ReadRegister(MARCSTATE)
		if err != nil {
			return false, err
		}
		switch state & 0x1F {
		case marcTX:
			return false, nil
		case marcTXFIFOUnderflow:
			return false, ErrTXUnderflow
		case marcIdle:
			n, err := c.dev.ReadRegister(TXBYTES)
			if err != nil {
				return false, err
			}
			if n&fifoCountMask == 0 && timeout < settleTimeout {
				return true, nil
			}
		}
		if timeout <= 0 {
			return false, fmt.Errorf("%w: radio never entered TX", ErrTimeout)
		}
		time.Sleep(settlePollInterval)
		timeout -= settlePollInterval
	}
}
