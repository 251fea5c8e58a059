package cc1101

import (
	"fmt"
	"sort"
)

// PA table values for the recommended output power levels in each ISM band,
// from TI design note DN013. Keys are output power in dBm.
var (
	paTable315 = map[int]byte{-30: 0x12, -20: 0x0D, -15: 0x1C, -10: 0x34, 0: 0x51, 5: 0x85, 7: 0xCB, 10: 0xC2}
	paTable433 = map[int]byte{-30: 0x12, -20: 0x0E, -15: 0x1D, -10: 0x34, 0: 0x60, 5: 0x84, 7: 0xC8, 10: 0xC0}
	paTable868 = map[int]byte{-30: 0x03, -20: 0x0F, -15: 0x1E, -10: 0x27, 0: 0x50, 5: 0x81, 7: 0xCB, 10: 0xC2}
	paTable915 = map[int]byte{-30: 0x03, -20: 0x0E, -15: 0x1E, -10: 0x27, 0: 0x8E, 5: 0xCD, 7: 0xC7, 10: 0xC0}
)

// ISM band centers in Hz. A frequency within 1 MHz of a center uses that
// band's PA table.
var paBands = []struct {
	center uint32
	table  map[int]byte
}{
	{315000000, paTable315},
	{433000000, paTable433},
	{868000000, paTable868},
	{915000000, paTable915},
}

const paBandTolerance = 1000000 // Hz

func paTableFor(hz uint32) map[int]byte {
	for _, b := range paBands {
		var diff uint32
		if hz > b.center {
			diff = hz - b.center
		} else {
			diff = b.center - hz
		}
		if diff <= paBandTolerance {
			return b.table
		}
	}
	return nil
}

func paLevels(t map[int]byte) []int {
	levels := make([]int, 0, len(t))
	for dbm := range t {
		levels = append(levels, dbm)
	}
	sort.Ints(levels)
	return levels
}

// patableEntry resolves the configured transmit power to a PATABLE value.
func (c *Config) patableEntry() (byte, error) {
	if c.TXPowerIsRaw {
		return c.TXPowerRaw, nil
	}
	t := paTableFor(c.Frequency)
	if t == nil {
		if c.TXPower != 0 {
			return 0, inconsistent("TXPower",
				"dBm lookup requires a frequency within 1 MHz of 315/433/868/915 MHz; set TXPowerRaw instead")
		}
		return defaultPATable, nil
	}
	v, ok := t[c.TXPower]
	if !ok {
		return 0, outOfRange("TXPower", fmt.Sprintf("supported levels are %v dBm", paLevels(t)))
	}
	return v, nil
}

// defaultPATable is roughly 0 dBm in every band.
const defaultPATable = 0x50
