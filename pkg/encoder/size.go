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

const (
	// WordBits is the number of channels packed into one shared register word
	WordBits = 32
	// WordSize is the size of one shared register word in bytes
	WordSize = 4
	// CountRecordSize is the size of the per-channel counts record in the read buffer
	CountRecordSize = 4
)

// WordsFor returns the number of 32-bit words required to hold one bit per channel
func WordsFor(numChannels int) int {
	return (numChannels + WordBits - 1) / WordBits
}

// FlagsSize returns the size in bytes of a single shared register for numChannels
func FlagsSize(numChannels int) int {
	return WordsFor(numChannels) * WordSize
}

// WriteBufferSize returns the number of bytes sent to the FPGA every cycle.
// Each channel has one bit in the index enable register and one bit in the
// reset index pulse register.
func WriteBufferSize(numChannels int) int {
	return 2 * FlagsSize(numChannels)
}

// ReadBufferSize returns the number of bytes received from the FPGA every cycle:
// the shared index pulse register followed by one counts record per channel.
func ReadBufferSize(numChannels int) int {
	return FlagsSize(numChannels) + numChannels*CountRecordSize
}

// ChannelsForReadSize is the inverse of ReadBufferSize. The second return value
// is false when no channel count produces a read buffer of the given size.
func ChannelsForReadSize(size int) (int, bool) {
	if size < 0 {
		return 0, false
	}
	// Every channel takes at least CountRecordSize bytes, so size/CountRecordSize
	// is an upper bound.
	for n := size / CountRecordSize; n >= 0; n-- {
		s := ReadBufferSize(n)
		if s == size {
			return n, true
		}
		if s < size {
			break
		}
	}
	return 0, false
}
