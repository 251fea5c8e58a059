package cc1101

// Configuration for Raspberry Pi with a CC1101 breakout on SPI0.

const (
	spiDevice = "/dev/spidev0.0"
	customCS  = 0
	resetPin  = 25 // power control line for hard resets
)
