package cc1101

import (
	"fmt"
	"math/bits"
	"sort"
	"time"
)

// Modulation selects the RF modulation format (MDMCFG2.MOD_FORMAT).
type Modulation byte

const (
	FSK2 Modulation = 0 // 2-FSK
	GFSK Modulation = 1 // Gaussian-shaped 2-FSK
	OOK  Modulation = 3 // ASK/OOK
	FSK4 Modulation = 4 // 4-FSK
	MSK  Modulation = 7 // Minimum shift keying
)

func (m Modulation) String() string {
	switch m {
	case FSK2:
		return "2-FSK"
	case GFSK:
		return "GFSK"
	case OOK:
		return "OOK"
	case FSK4:
		return "4-FSK"
	case MSK:
		return "MSK"
	}
	return fmt.Sprintf("Modulation(%d)", byte(m))
}

// SyncMode selects how strictly the receiver must match the sync word
// before accepting a packet (MDMCFG2.SYNC_MODE).
type SyncMode byte

const (
	SyncNone   SyncMode = 0 // no sync word qualification
	Sync15of16 SyncMode = 1
	Sync16of16 SyncMode = 2
	Sync30of32 SyncMode = 3 // sync word transmitted and matched twice
)

// Supported frequency bands in Hz (datasheet section 21).
const (
	band0Min = 300000000
	band0Max = 348000000
	band1Min = 387000000
	band1Max = 464000000
	band2Min = 779000000
	band2Max = 928000000
)

// Config describes a complete radio configuration. The zero value is not
// usable; at minimum Frequency, DataRate and PacketLength must be set.
// A Config has no effect until it passes Validate and the resulting
// ValidatedConfig is applied.
type Config struct {
	Frequency  uint32     // carrier frequency in Hz
	Modulation Modulation // modulation format
	DataRate   uint32     // symbol rate in Baud
	Bandwidth  uint32     // RX filter bandwidth in Hz (0 selects 203 kHz)
	Deviation  uint32     // FSK deviation in Hz (0 selects 47.6 kHz; ignored for OOK)

	SyncWord uint16
	SyncMode SyncMode

	FixedLength  bool // fixed-length packets instead of a leading length byte
	PacketLength int  // packet length (fixed) or maximum payload length (variable)
	CRC          bool // append and verify a CRC-16 over the payload

	PreambleBytes int // 2, 3, 4, 6, 8, 12, 16 or 24 (0 selects 4)
	CarrierSense  int // carrier sense threshold in dB, 17..49 (0 leaves default)

	// TXPower is the transmit power in dBm, resolved against the PA table
	// for the nearest ISM band (315/433/868/915 MHz). For other frequencies
	// set TXPowerRaw to an explicit PATABLE value instead.
	TXPower      int
	TXPowerRaw   byte
	TXPowerIsRaw bool
}

// RegisterMap maps CC1101 register addresses to values.
type RegisterMap map[byte]byte

// Addresses returns the mapped register addresses in ascending order.
func (m RegisterMap) Addresses() []byte {
	a := make([]byte, 0, len(m))
	for addr := range m {
		a = append(a, addr)
	}
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	return a
}

// ValidatedConfig is a Config that has resolved to a consistent register
// image. It is only produced by Validate, so a ValidatedConfig in hand means
// no partial application can occur.
type ValidatedConfig struct {
	Config
	regs RegisterMap
}

// Registers returns the register image for this configuration.
// The mapping is pure: equal configurations yield equal images.
func (v *ValidatedConfig) Registers() RegisterMap {
	m := make(RegisterMap, len(v.regs))
	for addr, val := range v.regs {
		m[addr] = val
	}
	return m
}

// byteTime returns the on-air duration of one byte at the configured rate.
func (v *ValidatedConfig) byteTime() time.Duration {
	return 8 * time.Second / time.Duration(v.DataRate)
}

func outOfRange(field, reason string) error {
	return &ConfigError{Kind: OutOfRange, Field: field, Reason: reason}
}

func inconsistent(field, reason string) error {
	return &ConfigError{Kind: InconsistentFields, Field: field, Reason: reason}
}

// Validate checks ranges and cross-field consistency and resolves the
// configuration to a register image. It never touches the hardware.
func (c Config) Validate() (*ValidatedConfig, error) {
	if !validFrequency(c.Frequency) {
		return nil, outOfRange("Frequency", "must lie in 300-348, 387-464 or 779-928 MHz")
	}
	switch c.Modulation {
	case FSK2, GFSK, OOK, FSK4, MSK:
	default:
		return nil, outOfRange("Modulation", "unknown modulation format")
	}
	min, max := dataRateLimits(c.Modulation)
	if c.DataRate < min || c.DataRate > max {
		return nil, outOfRange("DataRate",
			fmt.Sprintf("must be %d-%d Baud for %v", min, max, c.Modulation))
	}
	bw := c.Bandwidth
	if bw == 0 {
		bw = defaultBandwidth
	}
	bwM, bwE, ok := bandwidthToConfig(bw)
	if !ok {
		return nil, outOfRange("Bandwidth", "must be 58035-812500 Hz")
	}
	dev := c.Deviation
	if dev == 0 {
		dev = defaultDeviation
	}
	devM, devE, ok := deviationToConfig(dev)
	if !ok {
		return nil, outOfRange("Deviation", "must be 1586-380859 Hz")
	}
	if c.SyncMode > Sync30of32 {
		return nil, outOfRange("SyncMode", "unknown sync mode")
	}
	if !c.FixedLength && c.SyncMode == SyncNone {
		return nil, inconsistent("SyncMode", "variable packet length requires a sync word")
	}
	if c.PacketLength < 1 || c.PacketLength > 255 {
		return nil, outOfRange("PacketLength", "must be 1-255")
	}
	if c.CRC && c.PacketLength > 253 {
		return nil, inconsistent("PacketLength", "CRC leaves room for at most 253 payload bytes")
	}
	preamble := c.PreambleBytes
	if preamble == 0 {
		preamble = defaultPreambleBytes
	}
	preBits, ok := preambleBits[preamble]
	if !ok {
		return nil, outOfRange("PreambleBytes", "must be 2, 3, 4, 6, 8, 12, 16 or 24")
	}
	if c.CarrierSense != 0 && (c.CarrierSense < 17 || c.CarrierSense > 49) {
		return nil, outOfRange("CarrierSense", "must be 17-49 dB")
	}
	pa, err := c.patableEntry()
	if err != nil {
		return nil, err
	}

	v := &ValidatedConfig{Config: c}
	v.Config.Bandwidth = bw
	v.Config.Deviation = dev
	v.Config.PreambleBytes = preamble
	v.regs = buildRegisters(&v.Config, bwM, bwE, devM, devE, preBits, pa)
	return v, nil
}

func validFrequency(hz uint32) bool {
	return (band0Min <= hz && hz <= band0Max) ||
		(band1Min <= hz && hz <= band1Max) ||
		(band2Min <= hz && hz <= band2Max)
}

// dataRateLimits returns the supported symbol rate range in Baud for a
// modulation format (datasheet section 12, table 3).
func dataRateLimits(m Modulation) (uint32, uint32) {
	switch m {
	case FSK2:
		return 600, 500000
	case FSK4:
		return 600, 300000
	case MSK:
		return 26000, 500000
	}
	// GFSK, OOK
	return 600, 250000
}

const (
	defaultBandwidth     = 203125 // Hz, MDMCFG4 reset value
	defaultDeviation     = 47607  // Hz, DEVIATN reset value
	defaultPreambleBytes = 4
)

// MDMCFG1.NUM_PREAMBLE encoding of the preamble length in bytes.
var preambleBits = map[int]byte{
	2: 0, 3: 1, 4: 2, 6: 3, 8: 4, 12: 5, 16: 6, 24: 7,
}

// frequencyToWord converts a frequency in Hz to the FREQ2..FREQ0 control
// word: f = freq * 2^16 / FXOSC, rounded (datasheet section 21).
func frequencyToWord(hz uint32) uint32 {
	return uint32((uint64(hz)<<16 + FXOSC/2) / FXOSC)
}

// wordToFrequency is the inverse of frequencyToWord.
func wordToFrequency(w uint32) uint32 {
	return uint32(uint64(w) * FXOSC >> 16)
}

// dataRateToConfig converts a symbol rate in Baud to the DRATE_M/DRATE_E
// encoding: rate = (256 + M) * 2^E * FXOSC / 2^28 (datasheet section 12).
func dataRateToConfig(baud uint32) (byte, byte) {
	e := byte(bits.Len64(uint64(baud)<<20/FXOSC) - 1)
	div := uint64(FXOSC) << e
	m := (uint64(baud)<<28 + div/2) / div
	if m >= 512 {
		e++
		div <<= 1
		m = (uint64(baud)<<28 + div/2) / div
	}
	return byte(m - 256), e
}

// configToDataRate is the inverse of dataRateToConfig.
func configToDataRate(m, e byte) uint32 {
	return uint32((256 + uint64(m)) << e * FXOSC >> 28)
}

// configToBandwidth returns the RX filter bandwidth in Hz for a
// CHANBW_M/CHANBW_E encoding: BW = FXOSC / (8 * (4 + M) * 2^E)
// (datasheet section 13).
func configToBandwidth(m, e byte) uint32 {
	return FXOSC / (8 * (4 + uint32(m)) << e)
}

// bandwidthToConfig picks the narrowest configurable bandwidth that is at
// least the requested one. Configurable values run from 58 to 812 kHz.
func bandwidthToConfig(hz uint32) (byte, byte, bool) {
	if hz < configToBandwidth(3, 3) || hz > configToBandwidth(0, 0) {
		return 0, 0, false
	}
	var bestM, bestE byte
	best := uint32(0)
	for m := byte(0); m < 4; m++ {
		for e := byte(0); e < 4; e++ {
			bw := configToBandwidth(m, e)
			if bw >= hz && (best == 0 || bw < best) {
				best, bestM, bestE = bw, m, e
			}
		}
	}
	return bestM, bestE, true
}

// configToDeviation returns the FSK deviation in Hz for a
// DEVIATION_M/DEVIATION_E encoding: dev = FXOSC / 2^17 * (8 + M) * 2^E
// (datasheet section 16.1).
func configToDeviation(m, e byte) uint32 {
	return uint32((8 + uint64(m)) << e * FXOSC >> 17)
}

// deviationToConfig picks the closest configurable deviation.
func deviationToConfig(hz uint32) (byte, byte, bool) {
	if hz < configToDeviation(0, 0) || hz > configToDeviation(7, 7) {
		return 0, 0, false
	}
	var bestM, bestE byte
	bestDiff := uint32(1 << 31)
	for m := byte(0); m < 8; m++ {
		for e := byte(0); e < 8; e++ {
			dev := configToDeviation(m, e)
			diff := dev - hz
			if dev < hz {
				diff = hz - dev
			}
			if diff < bestDiff {
				bestDiff, bestM, bestE = diff, m, e
			}
		}
	}
	return bestM, bestE, true
}

// carrierSenseToConfig maps an absolute carrier sense threshold in dB onto
// the AGC MAGN_TARGET table plus a signed 4-bit offset
// (datasheet section 17.4).
func carrierSenseToConfig(cs int) (agcctrl2, agcctrl1 byte) {
	magnTargets := [8]int{24, 27, 30, 33, 36, 38, 40, 42}
	best, bestDiff := 0, 1<<31
	for i, t := range magnTargets {
		diff := cs - t
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	off := cs - magnTargets[best]
	if off < -8 {
		off = -8
	} else if off > 7 {
		off = 7
	}
	agcctrl2 = 0x40 | byte(best)
	agcctrl1 = 0x40 | byte(off)&0x0F
	return agcctrl2, agcctrl1
}

// buildRegisters produces the register image for a resolved configuration.
// Registers not derived from Config carry values from SmartRF Studio for a
// 26 MHz crystal.
func buildRegisters(c *Config, bwM, bwE, devM, devE, preBits, pa byte) RegisterMap {
	drM, drE := dataRateToConfig(c.DataRate)
	freq := frequencyToWord(c.Frequency)
	sync := marshalUint16(c.SyncWord)

	syncBits := byte(c.SyncMode)
	if c.CarrierSense != 0 {
		syncBits |= 0x04 // add carrier sense qualification
	}
	pktctrl0 := byte(0x00)
	if !c.FixedLength {
		pktctrl0 |= 0x01
	}
	if c.CRC {
		pktctrl0 |= 0x04
	}
	// The packet engine counts the trailing CRC-16 as part of the packet
	// body, so PKTLEN covers it.
	pktlen := c.PacketLength
	if c.CRC {
		pktlen += 2
	}
	agcctrl2, agcctrl1 := byte(0x43), byte(0x40)
	if c.CarrierSense != 0 {
		agcctrl2, agcctrl1 = carrierSenseToConfig(c.CarrierSense)
	}

	return RegisterMap{
		IOCFG2:   0x29, // CHIP_RDYn
		IOCFG0:   0x06, // assert on sync word, deassert at end of packet
		FIFOTHR:  0x07, // 32/32 byte thresholds
		SYNC1:    sync[0],
		SYNC0:    sync[1],
		PKTLEN:   byte(pktlen),
		PKTCTRL1: 0x00, // no address check, no appended status
		PKTCTRL0: pktctrl0,
		ADDR:     0x00,
		CHANNR:   0x00,
		FSCTRL1:  0x06,
		FSCTRL0:  0x00,
		FREQ2:    byte(freq >> 16),
		FREQ1:    byte(freq >> 8),
		FREQ0:    byte(freq),
		MDMCFG4:  bwE<<6 | bwM<<4 | drE,
		MDMCFG3:  drM,
		MDMCFG2:  byte(c.Modulation)<<4 | syncBits,
		MDMCFG1:  preBits<<4 | 0x02,
		MDMCFG0:  0xF8,
		DEVIATN:  devE<<4 | devM,
		MCSM1:    0x3C, // CCA unless RSSI below threshold; stay in RX; TX -> IDLE
		MCSM0:    0x18, // auto-calibrate on IDLE -> RX/TX
		FOCCFG:   0x16,
		BSCFG:    0x6C,
		AGCCTRL2: agcctrl2,
		AGCCTRL1: agcctrl1,
		AGCCTRL0: 0x91,
		FREND1:   0x56,
		FREND0:   0x10,
		FSCAL3:   0xE9,
		FSCAL2:   0x2A,
		FSCAL1:   0x00,
		FSCAL0:   0x1F,
		TEST2:    0x81,
		TEST1:    0x35,
		TEST0:    0x09,
		PATABLE:  pa,
	}
}
