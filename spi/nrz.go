package spi

// Encoder expands pixel bytes into the NRZ bit stream WS281x-style LEDs
// expect, using three SPI bits per data bit: 110 for a one and 100 for a
// zero, MSB first.
type Encoder struct {
	lut [256][3]byte
}

// NewEncoder builds the byte lookup table.
func NewEncoder() *Encoder {
	e := &Encoder{}
	for v := 0; v < 256; v++ {
		out := uint32(0)
		for i := 7; i >= 0; i-- {
			tri := uint32(0b100)
			if (v>>i)&1 == 1 {
				tri = 0b110
			}
			out = (out << 3) | tri
		}
		e.lut[v] = [3]byte{byte(out >> 16), byte(out >> 8), byte(out)}
	}
	return e
}

// Encode appends the encoding of src to dst. The result grows by
// 3*len(src) bytes.
func (e *Encoder) Encode(dst, src []byte) []byte {
	for _, v := range src {
		enc := &e.lut[v]
		dst = append(dst, enc[0], enc[1], enc[2])
	}
	return dst
}
