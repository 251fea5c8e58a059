//go:build !uart
// +build !uart

package cc1101

import (
	"fmt"
	"log"
	"time"

	"github.com/ecc1/gpio"
	"github.com/ecc1/spi"
)

const (
	spiSpeed = 5000000 // Hz; datasheet limit for burst access is 6.5 MHz

	resetPollInterval = 100 * time.Microsecond

	defaultDevice = spiDevice
)

// spiDev drives the CC1101 directly over SPI.
type spiDev struct {
	device   *spi.Device
	resetPin gpio.OutputPin
	path     string
}

// openDevice opens the transceiver at the given SPI device path.
// An empty path selects the platform default.
func openDevice(path string) (Device, error) {
	if path == "" {
		path = spiDevice
	}
	dev, err := spi.Open(path, spiSpeed, customCS)
	if err != nil {
		return nil, classifyIOError(err)
	}
	d := &spiDev{device: dev, path: path}
	if resetPin >= 0 {
		d.resetPin, err = gpio.Output(resetPin, true, false)
		if err != nil {
			_ = dev.Close()
			return nil, classifyIOError(err)
		}
	}
	if err := d.Reset(); err != nil {
		_ = dev.Close()
		return nil, err
	}
	return d, nil
}

// transfer performs a full-duplex SPI transaction. The first byte of buf is
// the header; on return it holds the chip status byte.
func (d *spiDev) transfer(buf []byte) error {
	if err := d.device.Transfer(buf); err != nil {
		return classifyIOError(err)
	}
	if buf[0]&chipNotReady != 0 {
		return fmt.Errorf("%w: crystal not ready", ErrDisconnected)
	}
	return nil
}

func (d *spiDev) ReadRegister(addr byte) (byte, error) {
	hdr := addr | spiReadAccess
	if addr >= PARTNUM && addr <= RCCTRL0_STATUS {
		// Status registers share addresses with strobes and are
		// distinguished by the burst bit.
		hdr |= spiBurstAccess
	}
	var val byte
	err := withRetry(func() error {
		buf := []byte{hdr, 0}
		if err := d.transfer(buf); err != nil {
			return err
		}
		val = buf[1]
		return nil
	})
	if err != nil {
		return 0, err
	}
	if verboseIO {
		log.Printf("read %02X -> %02X", addr, val)
	}
	return val, nil
}

func (d *spiDev) ReadRegisters(addrs []byte) (RegisterMap, error) {
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

func (d *spiDev) WriteRegisters(regs RegisterMap) error {
	for _, addr := range regs.Addresses() {
		a, v := addr, regs[addr]
		err := withRetry(func() error {
			return d.transfer([]byte{a, v})
		})
		if err != nil {
			return err
		}
		if verboseIO {
			log.Printf("write %02X <- %02X", a, v)
		}
	}
	return nil
}

func (d *spiDev) ReadFIFO(max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	var data []byte
	err := withRetry(func() error {
		buf := make([]byte, 1+max)
		buf[0] = FIFOREG | spiReadAccess | spiBurstAccess
		if err := d.transfer(buf); err != nil {
			return err
		}
		data = buf[1:]
		return nil
	})
	if err != nil {
		return nil, err
	}
	if verboseIO {
		log.Printf("read %d-byte FIFO burst % X", len(data), data)
	}
	return data, nil
}

func (d *spiDev) WriteFIFO(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	err := withRetry(func() error {
		buf := make([]byte, 1+len(b))
		buf[0] = FIFOREG | spiBurstAccess
		copy(buf[1:], b)
		return d.transfer(buf)
	})
	if err != nil {
		return 0, err
	}
	if verboseIO {
		log.Printf("wrote %d-byte FIFO burst % X", len(b), b)
	}
	return len(b), nil
}

func (d *spiDev) Strobe(s Strobe) (byte, error) {
	var status byte
	err := withRetry(func() error {
		buf := []byte{byte(s)}
		if err := d.transfer(buf); err != nil {
			return err
		}
		status = buf[0]
		return nil
	})
	if err != nil {
		return 0, err
	}
	if verboseIO {
		log.Printf("strobe %02X -> %02X", byte(s), status)
	}
	return status, nil
}

// Reset power-cycles the radio when a power control line is wired, then
// issues SRES and waits for the crystal to stabilize.
func (d *spiDev) Reset() error {
	if d.resetPin != nil {
		_ = d.resetPin.Write(true)
		time.Sleep(100 * time.Microsecond)
		if err := d.resetPin.Write(false); err != nil {
			return classifyIOError(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	buf := []byte{byte(SRES)}
	if err := d.device.Transfer(buf); err != nil {
		return classifyIOError(err)
	}
	timeout := defaultTimeout
	for timeout > 0 {
		time.Sleep(resetPollInterval)
		timeout -= resetPollInterval
		buf[0] = byte(SNOP)
		if err := d.device.Transfer(buf); err != nil {
			return classifyIOError(err)
		}
		if buf[0]&chipNotReady == 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: chip not ready after reset", ErrTimeout)
}

func (d *spiDev) Close() error {
	if err := d.device.Close(); err != nil {
		return classifyIOError(err)
	}
	return nil
}
