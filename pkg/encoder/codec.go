/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package encoder

import (
	"encoding/binary"
)

// Cursor is a position in a cycle buffer. Codec functions read or write at the
// cursor and move it past the field they handled, so the fields of a buffer
// are processed strictly in wire order.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor at the start of buf
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the number of bytes consumed so far
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining returns the part of the buffer after the cursor
func (c *Cursor) Remaining() []byte {
	return c.buf[c.off:]
}

// DecodeFlags unpacks a shared register holding one bit per element of dst.
// The register spans WordsFor(len(dst)) words. Bits are read MSB first within
// each byte and channel 0 is the most significant bit of the block. Padding bits
// past len(dst) are consumed and dropped.
func DecodeFlags(cur *Cursor, dst []bool) {
	block := cur.buf[cur.off : cur.off+FlagsSize(len(dst))]
	for i := range dst {
		dst[i] = block[i>>3]&(0x80>>uint(i&7)) != 0
	}
	cur.off += len(block)
}

// EncodeFlags packs src into a shared register using the same layout as
// DecodeFlags. Every byte of the register is overwritten and padding bits are
// always zero, so the buffer does not have to be cleared between cycles.
func EncodeFlags(cur *Cursor, src []bool) {
	block := cur.buf[cur.off : cur.off+FlagsSize(len(src))]
	for j := range block {
		var b byte
		for k := 0; k < 8; k++ {
			i := j<<3 + k
			if i < len(src) && src[i] {
				b |= 0x80 >> uint(k)
			}
		}
		block[j] = b
	}
	cur.off += len(block)
}

// DecodeCount reads one big-endian counts record
func DecodeCount(cur *Cursor) int32 {
	v := int32(binary.BigEndian.Uint32(cur.buf[cur.off : cur.off+CountRecordSize]))
	cur.off += CountRecordSize
	return v
}

// EncodeCount writes one big-endian counts record
func EncodeCount(cur *Cursor, v int32) {
	binary.BigEndian.PutUint32(cur.buf[cur.off:cur.off+CountRecordSize], uint32(v))
	cur.off += CountRecordSize
}

// DecodeIndexPulse unpacks the index pulse register of the read buffer
func DecodeIndexPulse(cur *Cursor, dst []bool) {
	DecodeFlags(cur, dst)
}

// DecodeChannelCounts reads len(dst) consecutive counts records
func DecodeChannelCounts(cur *Cursor, dst []int32) {
	for i := range dst {
		dst[i] = DecodeCount(cur)
	}
}

// EncodeIndexEnable packs the index enable register of the write buffer
func EncodeIndexEnable(cur *Cursor, src []bool) {
	EncodeFlags(cur, src)
}

// EncodeResetIndexPulse packs the reset index pulse register of the write buffer
func EncodeResetIndexPulse(cur *Cursor, src []bool) {
	EncodeFlags(cur, src)
}
