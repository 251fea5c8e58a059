package cc1101

// Marshaling of ints in big-endian order.

func marshalUint16(n uint16) []byte {
	return []byte{byte(n >> 8), byte(n & 0xFF)}
}

func unmarshalUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
