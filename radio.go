package cc1101

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ecc1/radio"
)

// Radio is a handle on a CC1101 transceiver.
type Radio struct {
	dev  Device
	ctrl *controller
	path string

	// Counters are guarded by ctrl.mu.
	stats       radio.Statistics
	frameErrors int

	stream *PacketStream // active receive session, nil otherwise
}

// Open connects to the transceiver at the given device path; an empty
// path selects the platform default. The chip is reset and probed before
// the handle is returned.
func Open(path string) (*Radio, error) {
	if path == "" {
		path = defaultDevice
	}
	dev, err := openDevice(path)
	if err != nil {
		return nil, err
	}
	r := newRadio(dev, path)
	if err := r.probe(); err != nil {
		_ = dev.Close()
		return nil, err
	}
	return r, nil
}

func newRadio(dev Device, path string) *Radio {
	return &Radio{dev: dev, ctrl: newController(dev), path: path}
}

// probe checks that a CC1101 is actually answering on the bus. A missing
// or powered-down chip reads the version register as all-zeros or all-ones.
func (r *Radio) probe() error {
	part, err := r.dev.ReadRegister(PARTNUM)
	if err != nil {
		return err
	}
	ver, err := r.dev.ReadRegister(VERSION)
	if err != nil {
		return err
	}
	if ver == 0x00 || ver == 0xFF {
		return fmt.Errorf("%w: version register reads %02X", ErrDisconnected, ver)
	}
	if verbose {
		log.Printf("connected to %s (PARTNUM %02X VERSION %02X)", r.Name(), part, ver)
	}
	return nil
}

// Name returns the radio chip name.
func (r *Radio) Name() string {
	return "CC1101"
}

// Device returns the underlying I/O gateway.
func (r *Radio) Device() Device {
	return r.dev
}

// Path returns the device path the radio was opened on.
func (r *Radio) Path() string {
	return r.path
}

// State returns the current mode as a string.
func (r *Radio) State() string {
	return r.ctrl.Mode().String()
}

// Mode returns the current mode.
func (r *Radio) Mode() Mode {
	return r.ctrl.Mode()
}

// LastConfig returns a copy of the last configuration applied to the
// hardware, or nil before the first successful Configure.
func (r *Radio) LastConfig() *Config {
	vc := r.ctrl.lastConfig()
	if vc == nil {
		return nil
	}
	c := vc.Config
	return &c
}

// LastFault returns the latched fault, or nil when the radio is healthy.
func (r *Radio) LastFault() error {
	return r.ctrl.lastFault()
}

// Frequency reads back the carrier frequency currently programmed into
// the synthesizer, in Hz.
func (r *Radio) Frequency() (uint32, error) {
	r.ctrl.mu.Lock()
	defer r.ctrl.mu.Unlock()
	regs, err := r.dev.ReadRegisters([]byte{FREQ2, FREQ1, FREQ0})
	if err != nil {
		return 0, err
	}
	w := uint32(regs[FREQ2])<<16 | uint32(regs[FREQ1])<<8 | uint32(regs[FREQ0])
	return wordToFrequency(w), nil
}

// Statistics returns a snapshot of the traffic counters.
func (r *Radio) Statistics() radio.Statistics {
	r.ctrl.mu.Lock()
	defer r.ctrl.mu.Unlock()
	return r.stats
}

// FrameErrors returns the number of receive drain cycles that contained a
// framing violation.
func (r *Radio) FrameErrors() int {
	r.ctrl.mu.Lock()
	defer r.ctrl.mu.Unlock()
	return r.frameErrors
}

// Configure validates cfg and applies the resulting register image to the
// hardware. The radio must be idle.
func (r *Radio) Configure(cfg Config) error {
	vc, err := cfg.Validate()
	if err != nil {
		return err
	}
	return r.ctrl.configure(vc)
}

// Reset recovers the radio from a fault: the chip is reset and the last
// known-good configuration reapplied.
func (r *Radio) Reset() error {
	return r.ctrl.reset()
}

// Stop ends the active receive or transmit session and returns the radio
// to idle with both FIFOs flushed. Stopping an idle radio is a no-op.
func (r *Radio) Stop() error {
	if err := r.ctrl.stop(); err != nil {
		return err
	}
	r.awaitStream()
	return nil
}

// Close stops the radio and releases the device.
func (r *Radio) Close() error {
	stopErr := r.ctrl.stop()
	r.awaitStream()
	if err := r.dev.Close(); err != nil {
		return err
	}
	return stopErr
}

// awaitStream waits for the receive loop, if any, to observe the mode
// change and close its stream.
func (r *Radio) awaitStream() {
	r.ctrl.mu.Lock()
	s := r.stream
	r.stream = nil
	r.ctrl.mu.Unlock()
	if s != nil {
		<-s.done
	}
}

// streamCapacity bounds how far packet delivery may run ahead of the
// consumer before packets are dropped.
const streamCapacity = 4

// PacketStream delivers the packets of one receive session. The channel
// is closed when the session ends; Err then reports why.
type PacketStream struct {
	ch   chan Packet
	err  error
	done chan struct{}
}

// Packets returns the channel of incoming packets.
func (s *PacketStream) Packets() <-chan Packet {
	return s.ch
}

// Err reports why the stream ended: nil after Stop, the latched fault
// otherwise. It returns nil while the stream is still live.
func (s *PacketStream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// finish must be called exactly once, by the receive loop.
func (s *PacketStream) finish(err error) {
	s.err = err
	close(s.done)
	close(s.ch)
}

// StartReceive switches the radio into receive mode and returns the
// session's packet stream. Receive and transmit are half-duplex: starting
// either while one is active fails with ErrRadioBusy.
func (r *Radio) StartReceive() (*PacketStream, error) {
	if err := r.ctrl.startReceive(); err != nil {
		return nil, err
	}
	vc := r.ctrl.lastConfig()
	s := &PacketStream{
		ch:   make(chan Packet, streamCapacity),
		done: make(chan struct{}),
	}
	r.ctrl.mu.Lock()
	r.stream = s
	r.ctrl.mu.Unlock()
	go r.receiveLoop(s, vc)
	return s, nil
}

// receiveLoop drains the RX FIFO on the session's poll cadence, feeds the
// framer and delivers completed packets. It ends at the first poll after
// the mode leaves Receiving: cleanly on Stop, with the fault otherwise.
func (r *Radio) receiveLoop(s *PacketStream, vc *ValidatedConfig) {
	f := newFramer(vc)
	interval := pollIntervalFor(vc)
	for {
		time.Sleep(interval)
		var data []byte
		var rawRSSI, rawLQI byte
		err := r.ctrl.poll(Receiving, func(dev Device) error {
			var err error
			if data, err = drainRX(dev, fifoSize); err != nil || len(data) == 0 {
				return err
			}
			if rawRSSI, err = dev.ReadRegister(RSSI); err != nil {
				return err
			}
			rawLQI, err = dev.ReadRegister(LQI)
			return err
		})
		switch {
		case err == nil:
		case errors.Is(err, errInterrupted):
			s.finish(nil)
			return
		case isFault(err):
			s.finish(err)
			return
		case isTransientIO(err):
			continue
		default:
			s.finish(err)
			return
		}
		packets, frameErr := f.feed(data)
		if frameErr != nil {
			r.ctrl.mu.Lock()
			r.frameErrors++
			r.ctrl.mu.Unlock()
			if verbose {
				log.Printf("receive: %v", frameErr)
			}
		}
		for _, p := range packets {
			p.RSSI = decodeRSSI(rawRSSI)
			p.LQI = rawLQI & 0x7F
			r.ctrl.mu.Lock()
			r.stats.Packets.Received++
			r.stats.Bytes.Received += len(p.Payload)
			r.ctrl.mu.Unlock()
			select {
			case s.ch <- p:
			default:
				if verbose {
					log.Printf("receive: consumer lagging, packet dropped")
				}
			}
		}
	}
}

// StartTransmit frames payload and sends it, blocking until the whole
// packet has left the radio. Packets longer than the FIFO are streamed
// through it in chunks paced by the configured data rate.
func (r *Radio) StartTransmit(payload []byte) error {
	vc := r.ctrl.lastConfig()
	if vc == nil {
		return ErrNotConfigured
	}
	frame, err := newFramer(vc).frame(payload)
	if err != nil {
		return err
	}
	preload := frame
	if len(preload) > fifoSize {
		preload = frame[:fifoSize]
	}
	done, err := r.ctrl.startTransmit(preload)
	if err != nil {
		return err
	}
	if !done {
		if err := r.streamTransmit(frame[len(preload):], pollIntervalFor(vc)); err != nil {
			return err
		}
		if err := r.ctrl.stop(); err != nil {
			return err
		}
	}
	r.ctrl.mu.Lock()
	r.stats.Packets.Sent++
	r.stats.Bytes.Sent += len(payload)
	r.ctrl.mu.Unlock()
	return nil
}

// txStallLimit bounds how many poll cycles the transmit path tolerates
// without the hardware making progress. One interval is half a FIFO of air
// time, so a healthy chip always progresses within a couple of cycles.
const txStallLimit = 10

// streamTransmit feeds the rest of the frame through the TX FIFO and then
// waits for the hardware to finish sending it. The chip returns to its
// idle state on its own at the end of the packet.
func (r *Radio) streamTransmit(rest []byte, interval time.Duration) error {
	stalls := 0
	for len(rest) > 0 {
		time.Sleep(interval)
		var n int
		err := r.ctrl.poll(Transmitting, func(dev Device) error {
			var err error
			n, err = fillTX(dev, rest)
			return err
		})
		if err != nil {
			if errors.Is(err, errInterrupted) {
				return fmt.Errorf("transmit stopped with %d bytes unsent", len(rest))
			}
			if isTransientIO(err) && !isFault(err) {
				continue
			}
			return err
		}
		if n == 0 {
			if stalls++; stalls > txStallLimit {
				return r.transmitStalled()
			}
			continue
		}
		stalls = 0
		rest = rest[n:]
	}
	lastCount := fifoSize + 1
	for {
		time.Sleep(interval)
		var finished bool
		count := 0
		err := r.ctrl.poll(Transmitting, func(dev Device) error {
			w, err := readTXWindow(dev)
			if err != nil {
				return err
			}
			if w.underflow {
				return fmt.Errorf("%w: transmission aborted", ErrTXUnderflow)
			}
			state, err := dev.ReadRegister(MARCSTATE)
			if err != nil {
				return err
			}
			count = w.count
			finished = state&0x1F == marcIdle && w.count == 0
			return nil
		})
		if err != nil {
			if errors.Is(err, errInterrupted) {
				return errors.New("transmit stopped before the packet finished sending")
			}
			if isTransientIO(err) && !isFault(err) {
				continue
			}
			return err
		}
		if finished {
			return nil
		}
		if count < lastCount {
			stalls = 0
		} else if stalls++; stalls > txStallLimit {
			return r.transmitStalled()
		}
		lastCount = count
	}
}

// transmitStalled latches a fault for a TX FIFO that stopped draining.
func (r *Radio) transmitStalled() error {
	return r.ctrl.poll(Transmitting, func(Device) error {
		return fmt.Errorf("%w: TX FIFO stopped draining", ErrTimeout)
	})
}

// rssiOffset is the dBm offset of the raw RSSI reading for a 26 MHz
// reference (datasheet section 17.3).
const rssiOffset = 74

// decodeRSSI converts the RSSI status register to dBm: the raw value is a
// two's complement half-dB count above the offset floor.
func decodeRSSI(raw byte) int {
	r := int(raw)
	if r >= 128 {
		r -= 256
	}
	return r/2 - rssiOffset
}
