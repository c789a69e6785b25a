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

const (
	// ModuleID identifies the encoder module in the board configuration ("enc_")
	ModuleID = 0x656e635f
	// ModuleName is the name of the encoder module
	ModuleName = "encoder"
	// ModuleConfigSize is the size of the encoder section of the board configuration
	ModuleConfigSize = 4
)

// Engine decodes the read buffer and encodes the write buffer of all encoder
// channels of a board. It is not safe for concurrent use: one control loop
// calls ProcessRead and PrepareWrite once per period.
type Engine struct {
	channels []*Channel

	periodMemo int64
	recipDt    float64
	slot       int

	indexPulse  []bool
	indexEnable []bool
}

// NewEngine creates an engine with numChannels channels. The number of channels
// can not be changed afterwards.
func NewEngine(numChannels int) *Engine {
	e := &Engine{
		channels:    make([]*Channel, numChannels),
		indexPulse:  make([]bool, numChannels),
		indexEnable: make([]bool, numChannels),
	}
	for i := range e.channels {
		e.channels[i] = NewChannel()
	}
	return e
}

// ParseModuleConfig reads the encoder section of the board configuration. The
// section is a big-endian channel count. The rest of the configuration is
// returned so the next module can read its own section.
func ParseModuleConfig(config []byte) (int, []byte, error) {
	if len(config) < ModuleConfigSize {
		return 0, config, ErrModuleConfig{Size: len(config)}
	}
	n := binary.BigEndian.Uint32(config[0:ModuleConfigSize])
	return int(n), config[ModuleConfigSize:], nil
}

// NewEngineFromConfig creates an engine from the encoder section of the board configuration
func NewEngineFromConfig(config []byte) (*Engine, []byte, error) {
	n, rest, err := ParseModuleConfig(config)
	if err != nil {
		return nil, config, err
	}
	return NewEngine(n), rest, nil
}

// NumChannels returns the number of channels
func (e *Engine) NumChannels() int {
	return len(e.channels)
}

// Channel returns channel i
func (e *Engine) Channel(i int) *Channel {
	return e.channels[i]
}

// Channels returns all channels in wire order
func (e *Engine) Channels() []*Channel {
	return e.channels
}

// RecipDt returns the cached reciprocal of the period in seconds
func (e *Engine) RecipDt() float64 {
	return e.recipDt
}

// Slot returns the velocity sample the next read cycle will overwrite
func (e *Engine) Slot() int {
	return e.slot
}

// WriteBufferSize returns the size of the buffer PrepareWrite fills
func (e *Engine) WriteBufferSize() int {
	return WriteBufferSize(len(e.channels))
}

// ReadBufferSize returns the size of the buffer ProcessRead consumes
func (e *Engine) ReadBufferSize() int {
	return ReadBufferSize(len(e.channels))
}

// ProcessRead decodes the read buffer of one cycle and updates every channel.
// periodNs is the period of the control loop. It returns the number of bytes
// consumed. buf must be at least ReadBufferSize bytes long.
func (e *Engine) ProcessRead(buf []byte, periodNs int64) int {
	if len(e.channels) == 0 {
		return 0
	}

	if periodNs != e.periodMemo {
		e.recipDt = 1.0 / (float64(periodNs) * 1e-9)
		e.periodMemo = periodNs
	}

	cur := Cursor{buf: buf}
	DecodeIndexPulse(&cur, e.indexPulse)
	for i, ch := range e.channels {
		ch.Update(DecodeCount(&cur), e.indexPulse[i], e.recipDt, e.slot)
	}

	e.slot++
	if e.slot >= AverageSize {
		e.slot = 0
	}
	return cur.off
}

// PrepareWrite encodes the index enable and reset index pulse registers into
// buf. The reset index pulse bit of a channel is its index pulse of the last read
// cycle, which acknowledges the pulse to the FPGA. It returns the number of
// bytes written. buf must be at least WriteBufferSize bytes long.
func (e *Engine) PrepareWrite(buf []byte) int {
	if len(e.channels) == 0 {
		return 0
	}

	cur := Cursor{buf: buf}
	for i, ch := range e.channels {
		e.indexEnable[i] = ch.IndexEnable
	}
	EncodeIndexEnable(&cur, e.indexEnable)
	for i, ch := range e.channels {
		e.indexPulse[i] = ch.IndexPulse
	}
	EncodeResetIndexPulse(&cur, e.indexPulse)
	return cur.off
}
