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
	"math"
)

const (
	// AverageSize is the number of velocity samples in the running average
	AverageSize = 16
	// AverageRecip is the reciprocal of AverageSize
	AverageRecip = 1.0 / AverageSize
	// MinPositionScale is the smallest magnitude accepted for the position scale.
	// Smaller values and NaN are replaced by 1.0.
	MinPositionScale = 1e-20
)

// Channel is the state of a single encoder input. The exported fields are the
// pins and parameters of the channel. Reset, IndexEnable, PositionScale and X4Mode
// are inputs, all other fields are written by Update.
type Channel struct {
	RawCounts        int32
	Counts           int32
	Position         float64
	Velocity         float64
	VelocityRPM      float64
	OverflowOccurred bool
	IndexPulse       bool

	// Reset is cleared by Update once the reset has been applied
	Reset bool
	// IndexEnable is cleared by Update on the cycle the index pulse is seen
	IndexEnable bool

	PositionScale float64
	X4Mode        bool

	scaleValid         bool
	positionScaleMemo  float64
	positionScaleRecip float64
	resetOffset        int32
	velocity           [AverageSize]float64
}

// NewChannel returns a channel with a position scale of 1.0
func NewChannel() *Channel {
	return &Channel{
		PositionScale: 1.0,
	}
}

// ScaleRecip returns the reciprocal of the position scale used by the last update
func (c *Channel) ScaleRecip() float64 {
	return c.positionScaleRecip
}

// ResetOffset returns the counts captured by the last reset
func (c *Channel) ResetOffset() int32 {
	return c.resetOffset
}

func (c *Channel) updateScale() {
	if c.scaleValid && c.PositionScale == c.positionScaleMemo {
		return
	}
	if math.IsNaN(c.PositionScale) || (c.PositionScale > -MinPositionScale && c.PositionScale < MinPositionScale) {
		c.PositionScale = 1.0
	}
	c.positionScaleRecip = 1.0 / c.PositionScale
	c.positionScaleMemo = c.PositionScale
	c.scaleValid = true
}

// Update processes the counts received from the FPGA for one cycle.
//
// rawCounts is the hardware counter in host byte order and indexPulse is the
// index pulse bit of this cycle. recipDt is the reciprocal of the cycle period in
// seconds. slot selects the velocity sample overwritten by this cycle.
//
// As a side effect Update clears IndexEnable when an index pulse is seen and
// clears Reset after applying it. Both are inputs owned by the caller, so a
// second thread writing them during Update races with the engine.
func (c *Channel) Update(rawCounts int32, indexPulse bool, recipDt float64, slot int) {
	c.updateScale()

	countsOld := c.RawCounts
	c.RawCounts = rawCounts
	c.IndexPulse = indexPulse

	c.Counts = rawCounts
	if !c.X4Mode {
		c.Counts /= 4
	}

	// The FPGA only reports the rising edge of the index
	if indexPulse {
		c.IndexEnable = false
	}

	if c.Reset {
		c.OverflowOccurred = false
		c.resetOffset = c.Counts
		// the reset cycle is never a roll-over
		countsOld = rawCounts
		c.Reset = false
	}

	c.Counts -= c.resetOffset

	positionOld := c.Position
	if indexPulse {
		// The counter has been zeroed by the index and can not roll over within
		// one period, so the absolute position is valid again.
		c.Position = float64(c.Counts) * c.positionScaleRecip
		c.OverflowOccurred = false
	} else {
		difference := int64(rawCounts) - int64(countsOld)
		if difference < math.MinInt32 || difference > math.MaxInt32 {
			c.OverflowOccurred = true
			if difference < 0 {
				difference += math.MaxUint32
			} else {
				difference -= math.MaxUint32
			}
			if !c.X4Mode {
				difference /= 4
			}
		}
		if c.OverflowOccurred {
			c.Position = positionOld + float64(difference)*c.positionScaleRecip
		} else {
			c.Position = float64(c.Counts) * c.positionScaleRecip
		}
	}

	// The jump in position caused by an index pulse would show up as a spike
	// in the average, so the samples are left alone on that cycle.
	if !indexPulse {
		c.velocity[slot] = (c.Position - positionOld) * recipDt
		var sum float64
		for _, v := range c.velocity {
			sum += v
		}
		c.Velocity = sum * AverageRecip
		c.VelocityRPM = c.Velocity * 60.0
	}
}
