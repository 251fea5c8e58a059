//go:build uart
// +build uart

package cc1101

import (
	"fmt"
	"log"
	"time"

	"github.com/ecc1/serial"
)

const (
	serialDevice = "/dev/serial0"
	serialSpeed  = 115200

	defaultDevice = serialDevice
)

// Bridge commands understood by the serial adapter firmware, which relays
// them to the CC1101 over its local SPI bus.
type bridgeCommand byte

const (
	bridgeReadRegister  bridgeCommand = 1
	bridgeWriteRegister bridgeCommand = 2
	bridgeReadFIFO      bridgeCommand = 3
	bridgeWriteFIFO     bridgeCommand = 4
	bridgeStrobe        bridgeCommand = 5
	bridgeReset         bridgeCommand = 6
)

// Bridge status codes, first byte of every response.
const (
	bridgeOK byte = iota
	bridgeErrBusy
	bridgeErrTimeout
	bridgeErrNoChip
)

// serialDev drives the CC1101 through a serial bridge adapter.
type serialDev struct {
	port *serial.Port
	path string
}

// openDevice opens the transceiver behind the serial bridge at the given
// device path. An empty path selects the default.
func openDevice(path string) (Device, error) {
	if path == "" {
		path = serialDevice
	}
	port, err := serial.Open(path, serialSpeed)
	if err != nil {
		return nil, classifyIOError(err)
	}
	d := &serialDev{port: port, path: path}
	if err := d.Reset(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return d, nil
}

// request sends a framed command: [cmd, len, payload...].
func (d *serialDev) request(cmd bridgeCommand, params ...byte) error {
	data := make([]byte, 2+len(params))
	data[0] = byte(cmd)
	data[1] = byte(len(params))
	copy(data[2:], params)
	if verboseIO {
		log.Printf("bridge request: % X", data)
	}
	return classifyIOError(d.port.Write(data))
}

// response collects a framed reply: [status, len, payload...].
func (d *serialDev) response(timeout time.Duration) ([]byte, error) {
	const pollInterval = 1 * time.Millisecond
	buf := make([]byte, 2+256)
	off := 0
	for timeout > 0 {
		n, err := d.port.ReadAvailable(buf[off:])
		if err != nil {
			return nil, classifyIOError(err)
		}
		off += n
		if off >= 2 && off >= 2+int(buf[1]) {
			if verboseIO {
				log.Printf("bridge response: % X", buf[:2+buf[1]])
			}
			return d.checkStatus(buf[0], buf[2:2+int(buf[1])])
		}
		// Incomplete frame; wait for more data.
		time.Sleep(pollInterval)
		timeout -= pollInterval
	}
	return nil, fmt.Errorf("%w: no bridge response", ErrTimeout)
}

func (d *serialDev) checkStatus(status byte, payload []byte) ([]byte, error) {
	switch status {
	case bridgeOK:
		return payload, nil
	case bridgeErrBusy:
		return nil, fmt.Errorf("%w: bridge busy", ErrBusy)
	case bridgeErrTimeout:
		return nil, fmt.Errorf("%w: bridge timeout", ErrTimeout)
	case bridgeErrNoChip:
		return nil, fmt.Errorf("%w: bridge lost the chip", ErrDisconnected)
	}
	return nil, fmt.Errorf("%w: unknown bridge status %02X", ErrDisconnected, status)
}

// call performs one retried request/response round trip.
func (d *serialDev) call(cmd bridgeCommand, params ...byte) ([]byte, error) {
	var payload []byte
	err := withRetry(func() error {
		if err := d.request(cmd, params...); err != nil {
			return err
		}
		p, err := d.response(defaultTimeout)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	return payload, err
}

func (d *serialDev) ReadRegister(addr byte) (byte, error) {
	p, err := d.call(bridgeReadRegister, addr)
	if err != nil {
		return 0, err
	}
	if len(p) != 1 {
		return 0, fmt.Errorf("%w: short register read", ErrDisconnected)
	}
	return p[0], nil
}

func (d *serialDev) ReadRegisters(addrs []byte) (RegisterMap, error) {
	regs := make(RegisterMap, len(addrs))
	for _, addr := range addrs {
		v, err := d.ReadRegister(addr)
		if err != nil {
			return nil, err
		}
		regs[addr] = v
	}
	return regs, nil
}

func (d *serialDev) WriteRegisters(regs RegisterMap) error {
	for _, addr := range regs.Addresses() {
		if _, err := d.call(bridgeWriteRegister, addr, regs[addr]); err != nil {
			return err
		}
	}
	return nil
}

func (d *serialDev) ReadFIFO(max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	return d.call(bridgeReadFIFO, byte(max))
}

func (d *serialDev) WriteFIFO(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if _, err := d.call(bridgeWriteFIFO, b...); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (d *serialDev) Strobe(s Strobe) (byte, error) {
	p, err := d.call(bridgeStrobe, byte(s))
	if err != nil {
		return 0, err
	}
	if len(p) != 1 {
		return 0, fmt.Errorf("%w: short strobe response", ErrDisconnected)
	}
	return p[0], nil
}

func (d *serialDev) Reset() error {
	_, err := d.call(bridgeReset)
	return err
}

func (d *serialDev) Close() error {
	if err := d.port.Close(); err != nil {
		return classifyIOError(err)
	}
	return nil
}
