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

// ChannelSnapshot is a copy of the pins and parameters of a channel
type ChannelSnapshot struct {
	Channel          int     `json:"channel"`
	RawCounts        int32   `json:"raw_counts"`
	Counts           int32   `json:"counts"`
	Position         float64 `json:"position"`
	Velocity         float64 `json:"velocity"`
	VelocityRPM      float64 `json:"velocity_rpm"`
	OverflowOccurred bool    `json:"overflow_occurred"`
	IndexPulse       bool    `json:"index_pulse"`
	IndexEnable      bool    `json:"index_enable"`
	Reset            bool    `json:"reset"`
	PositionScale    float64 `json:"position_scale"`
	X4Mode           bool    `json:"x4_mode"`
}

// Snapshot copies the state of the channel. index is the position of the channel
// on the board.
func (c *Channel) Snapshot(index int) ChannelSnapshot {
	return ChannelSnapshot{
		Channel:          index,
		RawCounts:        c.RawCounts,
		Counts:           c.Counts,
		Position:         c.Position,
		Velocity:         c.Velocity,
		VelocityRPM:      c.VelocityRPM,
		OverflowOccurred: c.OverflowOccurred,
		IndexPulse:       c.IndexPulse,
		IndexEnable:      c.IndexEnable,
		Reset:            c.Reset,
		PositionScale:    c.PositionScale,
		X4Mode:           c.X4Mode,
	}
}

// SnapshotAll copies the state of all channels into dst, which is grown when it
// is too short, and returns it
func (e *Engine) SnapshotAll(dst []ChannelSnapshot) []ChannelSnapshot {
	dst = dst[:0]
	for i, ch := range e.channels {
		dst = append(dst, ch.Snapshot(i))
	}
	return dst
}
