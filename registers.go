package cc1101

// CC1101 hardware-related constants.
// Register addresses and state values are from the CC1101 datasheet (SWRS061I).
const (
	FXOSC = 26000000 // Crystal frequency in Hz

	fifoSize = 64 // RX and TX FIFO capacity in bytes
)

// Configuration registers (datasheet table 43).
const (
	IOCFG2   = 0x00 // GDO2 output pin configuration
	IOCFG1   = 0x01 // GDO1 output pin configuration
	IOCFG0   = 0x02 // GDO0 output pin configuration
	FIFOTHR  = 0x03 // RX FIFO and TX FIFO thresholds
	SYNC1    = 0x04 // Sync word, high byte
	SYNC0    = 0x05 // Sync word, low byte
	PKTLEN   = 0x06 // Packet length
	PKTCTRL1 = 0x07 // Packet automation control
	PKTCTRL0 = 0x08 // Packet automation control
	ADDR     = 0x09 // Device address
	CHANNR   = 0x0A // Channel number
	FSCTRL1  = 0x0B // Frequency synthesizer control
	FSCTRL0  = 0x0C // Frequency synthesizer control
	FREQ2    = 0x0D // Frequency control word, high byte
	FREQ1    = 0x0E // Frequency control word, middle byte
	FREQ0    = 0x0F // Frequency control word, low byte
	MDMCFG4  = 0x10 // Modem configuration
	MDMCFG3  = 0x11 // Modem configuration
	MDMCFG2  = 0x12 // Modem configuration
	MDMCFG1  = 0x13 // Modem configuration
	MDMCFG0  = 0x14 // Modem configuration
	DEVIATN  = 0x15 // Modem deviation setting
	MCSM2    = 0x16 // Main radio control state machine configuration
	MCSM1    = 0x17 // Main radio control state machine configuration
	MCSM0    = 0x18 // Main radio control state machine configuration
	FOCCFG   = 0x19 // Frequency offset compensation configuration
	BSCFG    = 0x1A // Bit synchronization configuration
	AGCCTRL2 = 0x1B // AGC control
	AGCCTRL1 = 0x1C // AGC control
	AGCCTRL0 = 0x1D // AGC control
	WOREVT1  = 0x1E // High byte event 0 timeout
	WOREVT0  = 0x1F // Low byte event 0 timeout
	WORCTRL  = 0x20 // Wake on radio control
	FREND1   = 0x21 // Front end RX configuration
	FREND0   = 0x22 // Front end TX configuration
	FSCAL3   = 0x23 // Frequency synthesizer calibration
	FSCAL2   = 0x24 // Frequency synthesizer calibration
	FSCAL1   = 0x25 // Frequency synthesizer calibration
	FSCAL0   = 0x26 // Frequency synthesizer calibration
	RCCTRL1  = 0x27 // RC oscillator configuration
	RCCTRL0  = 0x28 // RC oscillator configuration
	FSTEST   = 0x29 // Frequency synthesizer calibration control
	PTEST    = 0x2A // Production test
	AGCTEST  = 0x2B // AGC test
	TEST2    = 0x2C // Various test settings
	TEST1    = 0x2D // Various test settings
	TEST0    = 0x2E // Various test settings

	PATABLE = 0x3E // Power amplifier table
	FIFOREG = 0x3F // RX/TX FIFO access
)

// Status registers, read with the burst bit set (datasheet table 44).
const (
	PARTNUM        = 0x30 // Chip part number
	VERSION        = 0x31 // Chip version number
	FREQEST        = 0x32 // Frequency offset estimate
	LQI            = 0x33 // Demodulator estimate for link quality
	RSSI           = 0x34 // Received signal strength indication
	MARCSTATE      = 0x35 // Control state machine state
	WORTIME1       = 0x36 // High byte of WOR timer
	WORTIME0       = 0x37 // Low byte of WOR timer
	PKTSTATUS      = 0x38 // Current GDOx status and packet status
	VCO_VC_DAC     = 0x39 // Current setting from PLL calibration module
	TXBYTES        = 0x3A // Underflow and number of bytes in the TX FIFO
	RXBYTES        = 0x3B // Overflow and number of bytes in the RX FIFO
	RCCTRL1_STATUS = 0x3C // Last RC oscillator calibration result
	RCCTRL0_STATUS = 0x3D // Last RC oscillator calibration result
)

// Strobe represents a CC1101 command strobe.
type Strobe byte

//go:generate stringer -type Strobe

// Command strobes (datasheet table 42).
const (
	SRES    Strobe = 0x30 // Reset chip
	SFSTXON Strobe = 0x31 // Enable and calibrate frequency synthesizer
	SXOFF   Strobe = 0x32 // Turn off crystal oscillator
	SCAL    Strobe = 0x33 // Calibrate frequency synthesizer
	SRX     Strobe = 0x34 // Enable RX
	STX     Strobe = 0x35 // Enable TX
	SIDLE   Strobe = 0x36 // Exit RX/TX
	SWOR    Strobe = 0x38 // Start automatic wake-on-radio polling
	SPWD    Strobe = 0x39 // Power down when CSn goes high
	SFRX    Strobe = 0x3A // Flush the RX FIFO
	SFTX    Strobe = 0x3B // Flush the TX FIFO
	SWORRST Strobe = 0x3C // Reset real-time clock to Event1 value
	SNOP    Strobe = 0x3D // No operation
)

// MARCSTATE values of interest (datasheet table 32).
const (
	marcIdle            = 0x01
	marcRX              = 0x0D
	marcRXFIFOOverflow  = 0x11
	marcTX              = 0x13
	marcTXFIFOUnderflow = 0x16
)

// Header-byte access masks for register transactions.
const (
	spiReadAccess  = 0x80
	spiBurstAccess = 0x40
)

// Chip status byte, returned on each header transfer.
const chipNotReady = 0x80 // CHIP_RDYn: crystal not stable

// Fill-count fields of the RXBYTES/TXBYTES status registers.
const (
	fifoCountMask   = 0x7F
	rxFIFOOverflow  = 0x80 // RXBYTES bit 7
	txFIFOUnderflow = 0x80 // TXBYTES bit 7
)
