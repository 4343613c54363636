package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/srg/lednet/internal/codec"
)

// Transport frame layout:
//
//	[seq_hi seq_lo 0x80 0x00 len_hi len_lo (len+1)&0xFF kind] payload...
//
// len counts the payload including its trailing checksum.
const (
	HeaderLen = 8

	KindReply   byte = 0x0A
	KindNoReply byte = 0x0B

	headerMarker byte = 0x80
)

// Frame is a complete outbound command. The sequence bytes are zero until
// the device stamps them immediately before the write.
type Frame []byte

// NewFrame wraps payload in a transport header. With checksum, the sum of
// the payload bytes is appended first.
func NewFrame(payload []byte, reply, checksum bool) Frame {
	body := make([]byte, 0, len(payload)+1)
	body = append(body, payload...)
	if checksum {
		body = codec.AppendChecksum(body, 0)
	}

	n := len(body)
	f := make(Frame, HeaderLen, HeaderLen+n)
	f[2] = headerMarker
	binary.BigEndian.PutUint16(f[4:6], uint16(n))
	f[6] = byte((n + 1) & 0xFF)
	f[7] = KindNoReply
	if reply {
		f[7] = KindReply
	}
	return append(f, body...)
}

// ParseFrame validates a transport header and returns the frame.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("frame too short: %d bytes", len(b))
	}
	if b[2] != headerMarker {
		return nil, fmt.Errorf("bad frame marker 0x%02X", b[2])
	}
	n := int(binary.BigEndian.Uint16(b[4:6]))
	if len(b) != HeaderLen+n {
		return nil, fmt.Errorf("frame length %d does not match header %d", len(b)-HeaderLen, n)
	}
	return Frame(b), nil
}

// WithSequence returns a copy of f carrying seq.
func (f Frame) WithSequence(seq uint16) Frame {
	out := make(Frame, len(f))
	copy(out, f)
	if len(out) >= 2 {
		binary.BigEndian.PutUint16(out[0:2], seq)
	}
	return out
}

// Sequence returns the stamped sequence number.
func (f Frame) Sequence() uint16 {
	if len(f) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(f[0:2])
}

// Payload returns the bytes after the header, checksum included.
func (f Frame) Payload() []byte {
	if len(f) < HeaderLen {
		return nil
	}
	return f[HeaderLen:]
}

// Opcode returns the first payload byte.
func (f Frame) Opcode() byte {
	p := f.Payload()
	if len(p) == 0 {
		return 0
	}
	return p[0]
}

// ExpectsReply reports whether the device is asked to answer.
func (f Frame) ExpectsReply() bool {
	return len(f) >= HeaderLen && f[7] == KindReply
}

// HasValidChecksum reports whether the final byte is the checksum of the
// rest of the payload.
func (f Frame) HasValidChecksum() bool {
	if len(f) <= HeaderLen {
		return false
	}
	return codec.VerifyChecksum(f, HeaderLen)
}

func (f Frame) String() string {
	return hex.EncodeToString(f)
}
