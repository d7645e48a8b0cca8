package usbdl

import (
	"encoding/binary"
)

// MemoryRead reads count bytes starting at addr. Words are unpacked
// little-endian and the result is trimmed to count.
func (c *Client) MemoryRead(addr uint32, count int, cqdma bool) ([]byte, error) {
	words := uint32((count + 3) / 4)

	var (
		got []uint32
		err error
	)
	if cqdma {
		got, err = c.CQDMARead32(addr, words)
	} else {
		got, err = c.Read32(addr, words)
	}
	if err != nil {
		return nil, err
	}

	data := make([]byte, 4*len(got))
	for i, w := range got {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data[:count], nil
}

// MemoryWrite writes data starting at addr, zero padded to a whole word.
func (c *Client) MemoryWrite(addr uint32, data []byte, cqdma bool) error {
	words := PackWords(data)
	if cqdma {
		return c.CQDMAWrite32(addr, words...)
	}
	return c.Write32(addr, words...)
}

// PackWords splits data into little-endian words, zero padding the tail.
func PackWords(data []byte) []uint32 {
	padded := data
	if rem := len(data) % 4; rem != 0 {
		padded = make([]byte, len(data)+4-rem)
		copy(padded, data)
	}
	words := make([]uint32, len(padded)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(padded[i*4:])
	}
	return words
}

// DumpChunk is the default transfer size for Dump. Large single CQDMA
// reads tend to reset the SoC.
const DumpChunk = 0x400

// Dump reads size bytes in chunks, reporting progress after each one.
func (c *Client) Dump(addr uint32, size, chunk int, cqdma bool, progress func(done, total int)) ([]byte, error) {
	if chunk <= 0 {
		chunk = DumpChunk
	}
	out := make([]byte, 0, size)
	for done := 0; done < size; {
		n := chunk
		if size-done < n {
			n = size - done
		}
		data, err := c.MemoryRead(addr+uint32(done), n, cqdma)
		if err != nil {
			return out, err
		}
		out = append(out, data...)
		done += n
		if progress != nil {
			progress(done, size)
		}
	}
	return out, nil
}
