package cc1101

// Configuration for a generic x86-64 host with a USB SPI adapter.

const (
	spiDevice = "/dev/spidev0.0"
	customCS  = 0
	resetPin  = -1 // no power control line
)
