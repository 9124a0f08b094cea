// Package telemetry implements the single-error-correcting code that protects
// position reports on the simulated downlink.
//
// A frame carries 8 bits per character followed, interleaved, by parity bits
// at the power-of-two positions (1-indexed). The parity bit at 2^k makes the
// population of every position with bit k set even, so on decode the sum of
// failing checks is exactly the position of a single flipped bit.
package telemetry

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	// ErrCharacterRange is returned by Encode for characters above 255.
	ErrCharacterRange = errors.New("character outside byte range")
	// ErrPayloadLength is returned by Decode when the data bits do not form whole bytes.
	ErrPayloadLength = errors.New("payload length is not a multiple of 8 bits")
	// ErrUncorrectable is returned by Decode when the syndrome points outside
	// the frame, which only happens with two or more flipped bits.
	ErrUncorrectable = errors.New("syndrome outside frame")
)

// Frame is an encoded message, one bit (0 or 1) per element.
type Frame []byte

func (f Frame) String() string {
	var b strings.Builder
	b.Grow(len(f))
	for _, bit := range f {
		if bit&1 == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// DecodeResult describes a decoded frame.
type DecodeResult struct {
	Text string
	// Corrected is true when a single bit was flipped back.
	Corrected bool
	// Position is the 1-indexed corrected position, or 0.
	Position int
}

// ParityBits returns the number of parity bits needed for m data bits: the
// smallest r >= 1 with 2^r >= m + r + 1.
func ParityBits(m int) int {
	r := 1
	for 1<<r < m+r+1 {
		r++
	}
	return r
}

// checkBits returns the number of parity checks covering a frame of n bits.
func checkBits(n int) int {
	r := 1
	for 1<<r < n+1 {
		r++
	}
	return r
}

func isPowerOfTwo(i int) bool {
	return i&(i-1) == 0
}

// Encode converts text to a protected frame.
func Encode(text string) (Frame, error) {
	data := make([]byte, 0, len(text)*8)
	for i, c := range text {
		if c < 0 || c > 0xFF {
			return nil, fmt.Errorf("encode rune %q at offset %d: %w", c, i, ErrCharacterRange)
		}
		for bit := 7; bit >= 0; bit-- {
			data = append(data, byte(c>>bit)&1)
		}
	}

	m := len(data)
	r := ParityBits(m)
	frame := make(Frame, m+r)

	j := 0
	for pos := 1; pos <= len(frame); pos++ {
		if isPowerOfTwo(pos) {
			continue
		}
		frame[pos-1] = data[j]
		j++
	}

	for k := 0; k < r; k++ {
		p := 1 << k
		if p > len(frame) {
			break
		}
		frame[p-1] = parity(frame, p)
	}
	return frame, nil
}

// parity returns the XOR of every position covered by check p. The parity
// position itself is included, so on encode it must still be zero.
func parity(frame Frame, p int) byte {
	var acc byte
	for pos := p; pos <= len(frame); pos++ {
		if pos&p != 0 {
			acc ^= frame[pos-1] & 1
		}
	}
	return acc
}

// Decode corrects at most one flipped bit and returns the text.
func Decode(frame Frame) (string, error) {
	res, err := DecodeDetailed(frame)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// DecodeDetailed is Decode that also reports the correction it applied.
func DecodeDetailed(frame Frame) (DecodeResult, error) {
	bits := make(Frame, len(frame))
	copy(bits, frame)

	syndrome := 0
	if len(bits) > 0 {
		for k := 0; k < checkBits(len(bits)); k++ {
			p := 1 << k
			if p > len(bits) {
				break
			}
			if parity(bits, p) == 1 {
				syndrome += p
			}
		}
	}

	var res DecodeResult
	if syndrome != 0 {
		if syndrome > len(bits) {
			return DecodeResult{}, fmt.Errorf("decode %d-bit frame, syndrome %d: %w", len(bits), syndrome, ErrUncorrectable)
		}
		bits[syndrome-1] ^= 1
		res.Corrected = true
		res.Position = syndrome
	}

	data := make([]byte, 0, len(bits))
	for pos := 1; pos <= len(bits); pos++ {
		if isPowerOfTwo(pos) {
			continue
		}
		data = append(data, bits[pos-1]&1)
	}
	if len(data)%8 != 0 {
		return DecodeResult{}, fmt.Errorf("decode %d-bit frame with %d data bits: %w", len(bits), len(data), ErrPayloadLength)
	}

	var b strings.Builder
	for i := 0; i < len(data); i += 8 {
		var c byte
		for _, bit := range data[i : i+8] {
			c = c<<1 | bit
		}
		b.WriteRune(rune(c))
	}
	res.Text = b.String()
	return res, nil
}

// InjectErrors returns a copy of frame with count uniformly chosen positions
// flipped. Positions are drawn with replacement, so the same bit may flip
// back.
func InjectErrors(frame Frame, count int, rng *rand.Rand) Frame {
	out := make(Frame, len(frame))
	copy(out, frame)
	if len(out) == 0 {
		return out
	}
	for i := 0; i < count; i++ {
		out[rng.IntN(len(out))] ^= 1
	}
	return out
}

// Codec binds the frame operations to an injected random source so fault
// injection is reproducible.
type Codec struct {
	rng *rand.Rand
}

// NewCodec returns a Codec drawing fault positions from rng.
func NewCodec(rng *rand.Rand) *Codec {
	return &Codec{rng: rng}
}

func (c *Codec) Encode(text string) (Frame, error) { return Encode(text) }

func (c *Codec) Decode(frame Frame) (DecodeResult, error) { return DecodeDetailed(frame) }

// InjectErrors flips count random bits of a copy of frame.
func (c *Codec) InjectErrors(frame Frame, count int) Frame {
	return InjectErrors(frame, count, c.rng)
}
