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

package sim

import (
	"fmt"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/layers"
)

// Channel is the FPGA side of one quadrature encoder input
type Channel struct {
	// Counts is the hardware counter, it wraps around like the 32-bit FPGA register
	Counts       int32
	Step         int32
	CountsPerRev int32
	IndexEnable  bool
	// IndexPulse stays set until the host writes the reset index pulse bit
	IndexPulse bool
	sinceIndex int64
}

func (c *Channel) advance() {
	c.Counts += c.Step
	if c.CountsPerRev <= 0 {
		return
	}
	step := int64(c.Step)
	if step < 0 {
		step = -step
	}
	c.sinceIndex += step
	for c.sinceIndex >= int64(c.CountsPerRev) {
		c.sinceIndex -= int64(c.CountsPerRev)
		c.IndexPulse = true
		if c.IndexEnable {
			c.Counts = 0
			c.IndexEnable = false
		}
	}
}

// Board simulates the encoder module of a board. Each call to Read advances every
// encoder by one period and returns the read buffer, Write applies a write buffer.
type Board struct {
	Channels []*Channel
	Cycles   uint64

	indexPulse []bool
	counts     []int32
}

// NewBoard creates a board with numChannels idle encoders
func NewBoard(numChannels int) *Board {
	b := &Board{
		Channels:   make([]*Channel, numChannels),
		indexPulse: make([]bool, numChannels),
		counts:     make([]int32, numChannels),
	}
	for i := range b.Channels {
		b.Channels[i] = &Channel{}
	}
	return b
}

// NewBoardFromConfig creates a board with numChannels encoders moving as described by cfg.
// Channels missing from cfg stand still.
func NewBoardFromConfig(numChannels int, cfg *config.SimConfig) *Board {
	b := NewBoard(numChannels)
	if cfg == nil {
		return b
	}
	for i, chCfg := range cfg.Channels {
		if i >= numChannels || chCfg == nil {
			break
		}
		b.Channels[i].Counts = chCfg.Start
		b.Channels[i].Step = chCfg.Step
		b.Channels[i].CountsPerRev = chCfg.CountsPerRev
	}
	return b
}

// ReadSize returns the size of the read buffer of the board
func (b *Board) ReadSize() int {
	return encoder.ReadBufferSize(len(b.Channels))
}

// Read advances the encoders by one period and serializes their state into buf
func (b *Board) Read(buf []byte) error {
	if len(buf) < b.ReadSize() {
		return fmt.Errorf("Read buffer is %d bytes, board needs %d", len(buf), b.ReadSize())
	}
	b.Cycles++
	for i, ch := range b.Channels {
		ch.advance()
		b.indexPulse[i] = ch.IndexPulse
		b.counts[i] = ch.Counts
	}
	l := &layers.EncoderReadLayer{IndexPulse: b.indexPulse, Counts: b.counts}
	l.Serialize(buf)
	return nil
}

// Write applies the index enable and reset index pulse registers
func (b *Board) Write(buf []byte) error {
	l, err := layers.DecodeWriteFrame(buf, len(b.Channels))
	if err != nil {
		return err
	}
	for i, ch := range b.Channels {
		ch.IndexEnable = l.IndexEnable[i]
		if l.ResetIndexPulse[i] {
			ch.IndexPulse = false
		}
	}
	return nil
}
