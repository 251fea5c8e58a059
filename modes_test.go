package cc1101

import (
	"errors"
	"testing"
)

func newTestController(t *testing.T) (*fakeDevice, *controller) {
	t.Helper()
	d := newFakeDevice()
	return d, newController(d)
}

func configuredController(t *testing.T) (*fakeDevice, *controller) {
	t.Helper()
	d, c := newTestController(t)
	if err := c.configure(testValidated(t)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return d, c
}

func TestConfigureWritesRegisters(t *testing.T) {
	d, c := newTestController(t)
	vc := testValidated(t)
	if err := c.configure(vc); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if c.Mode() != Idle {
		t.Errorf("mode %v after configure, want Idle", c.Mode())
	}
	regs := vc.Registers()
	for _, addr := range regs.Addresses() {
		if d.regs[addr] != regs[addr] {
			t.Errorf("register %02X == %02X on the device, want %02X", addr, d.regs[addr], regs[addr])
		}
	}
	flushed := map[Strobe]bool{}
	for _, s := range d.strobes {
		flushed[s] = true
	}
	if !flushed[SIDLE] || !flushed[SFRX] || !flushed[SFTX] {
		t.Errorf("strobes %v: configure must idle the chip and flush both FIFOs", d.strobes)
	}
}

func TestConfigureWhileReceiving(t *testing.T) {
	_, c := configuredController(t)
	if err := c.startReceive(); err != nil {
		t.Fatalf("startReceive: %v", err)
	}
	if err := c.configure(testValidated(t)); !errors.Is(err, ErrRadioBusy) {
		t.Errorf("configure while receiving: %v, want ErrRadioBusy", err)
	}
	if c.Mode() != Receiving {
		t.Errorf("mode %v, want Receiving", c.Mode())
	}
}

func TestHalfDuplex(t *testing.T) {
	d, c := configuredController(t)
	if err := c.startReceive(); err != nil {
		t.Fatalf("startReceive: %v", err)
	}
	if _, err := c.startTransmit([]byte{1, 2, 3}); !errors.Is(err, ErrRadioBusy) {
		t.Errorf("transmit while receiving: %v, want ErrRadioBusy", err)
	}
	if err := c.stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	d.txDrainPerPoll = 0 // hold the radio in TX
	done, err := c.startTransmit([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("startTransmit: %v", err)
	}
	if done {
		t.Fatal("transmission reported done while the FIFO still holds data")
	}
	if err := c.startReceive(); !errors.Is(err, ErrRadioBusy) {
		t.Errorf("receive while transmitting: %v, want ErrRadioBusy", err)
	}
	d.txDrainPerPoll = fifoSize
	if err := c.stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if c.Mode() != Idle {
		t.Errorf("mode %v after stop, want Idle", c.Mode())
	}
}

func TestStartWithoutConfigure(t *testing.T) {
	_, c := newTestController(t)
	if err := c.startReceive(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("startReceive: %v, want ErrNotConfigured", err)
	}
	if _, err := c.startTransmit([]byte{1}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("startTransmit: %v, want ErrNotConfigured", err)
	}
}

func TestStopWhileIdle(t *testing.T) {
	d, c := newTestController(t)
	if err := c.stop(); err != nil {
		t.Fatalf("stop on an idle radio: %v", err)
	}
	if len(d.strobes) != 0 {
		t.Errorf("stop on an idle radio touched the hardware: %v", d.strobes)
	}
}

func TestTransmitCompletesWithinPreload(t *testing.T) {
	d, c := configuredController(t)
	done, err := c.startTransmit([]byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("startTransmit: %v", err)
	}
	if !done {
		t.Error("short transmission not reported done")
	}
	if c.Mode() != Idle {
		t.Errorf("mode %v, want Idle", c.Mode())
	}
	if len(d.sent) != 2 {
		t.Errorf("%d bytes on the air, want 2", len(d.sent))
	}
}

func TestIOFaultLatches(t *testing.T) {
	d, c := configuredController(t)
	d.failAll = ErrDisconnected
	err := c.startReceive()
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("startReceive: %v, want ErrDisconnected", err)
	}
	if c.Mode() != Fault {
		t.Fatalf("mode %v, want Fault", c.Mode())
	}
	var fe *FaultError
	if !errors.As(c.lastFault(), &fe) {
		t.Fatalf("lastFault %v, want a FaultError", c.lastFault())
	}
	// Every operation now reports the latched fault.
	if err := c.configure(testValidated(t)); !errors.Is(err, ErrDisconnected) {
		t.Errorf("configure in Fault: %v", err)
	}
	if err := c.stop(); !errors.Is(err, ErrDisconnected) {
		t.Errorf("stop in Fault: %v", err)
	}
}

func TestRXOverflowLatchesFault(t *testing.T) {
	d, c := configuredController(t)
	if err := c.startReceive(); err != nil {
		t.Fatalf("startReceive: %v", err)
	}
	d.rxOverflow = true
	err := c.poll(Receiving, func(dev Device) error {
		_, err := drainRX(dev, fifoSize)
		return err
	})
	if !errors.Is(err, ErrRXOverflow) {
		t.Fatalf("poll: %v, want ErrRXOverflow", err)
	}
	if c.Mode() != Fault {
		t.Errorf("mode %v, want Fault", c.Mode())
	}
}

func TestSettleTimeoutLatchesFault(t *testing.T) {
	d, c := configuredController(t)
	d.stuck = true
	err := c.startReceive()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("startReceive with a stuck state machine: %v, want ErrTimeout", err)
	}
	if c.Mode() != Fault {
		t.Errorf("mode %v, want Fault", c.Mode())
	}
}

func TestResetReappliesConfig(t *testing.T) {
	d, c := configuredController(t)
	vc := c.lastConfig()
	d.failAll = ErrDisconnected
	if err := c.startReceive(); err == nil {
		t.Fatal("startReceive succeeded on a dead device")
	}

	// The fake reconnects on reset.
	if err := c.reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if c.Mode() != Idle {
		t.Errorf("mode %v after reset, want Idle", c.Mode())
	}
	if c.lastFault() != nil {
		t.Errorf("fault still latched after reset: %v", c.lastFault())
	}
	if d.resets != 1 {
		t.Errorf("device reset %d times, want 1", d.resets)
	}
	regs := vc.Registers()
	for _, addr := range regs.Addresses() {
		if d.regs[addr] != regs[addr] {
			t.Errorf("register %02X == %02X after reset, want %02X", addr, d.regs[addr], regs[addr])
		}
	}
}

func TestResetFailureKeepsFault(t *testing.T) {
	d, c := configuredController(t)
	d.failAll = ErrDisconnected
	_ = c.startReceive()
	d.resetErr = ErrDisconnected
	if err := c.reset(); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("reset on a dead device: %v", err)
	}
	if c.Mode() != Fault {
		t.Errorf("mode %v, want Fault", c.Mode())
	}
}
