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
	"testing"
)

const testRecipDt = 1000.0

func TestChannelX4Position(t *testing.T) {
	ch := NewChannel()
	ch.X4Mode = true
	ch.PositionScale = 2.5
	for _, counts := range []int32{0, 1000, -1000, 123457, -99999} {
		ch.Update(counts, false, testRecipDt, 0)
		if ch.Counts != counts {
			t.Errorf("counts = %d, want %d", ch.Counts, counts)
		}
		if want := float64(counts) * (1 / 2.5); ch.Position != want {
			t.Errorf("position = %v, want %v", ch.Position, want)
		}
	}
}

func TestChannelCountsDivision(t *testing.T) {
	tests := []struct {
		raw  int32
		want int32
	}{
		{8, 2},
		{7, 1},
		{-7, -1},
		{-8, -2},
		{3, 0},
	}
	for _, tt := range tests {
		ch := NewChannel()
		ch.Update(tt.raw, false, testRecipDt, 0)
		if ch.Counts != tt.want {
			t.Errorf("raw %d: counts = %d, want %d", tt.raw, ch.Counts, tt.want)
		}
		if ch.RawCounts != tt.raw {
			t.Errorf("raw counts = %d, want %d", ch.RawCounts, tt.raw)
		}
	}
}

func TestChannelForwardRollover(t *testing.T) {
	ch := NewChannel()
	ch.X4Mode = true
	ch.Update(math.MaxInt32-4, false, testRecipDt, 0)
	if ch.OverflowOccurred {
		t.Fatal("overflow before roll-over")
	}
	before := ch.Position
	ch.Update(math.MinInt32+10, false, testRecipDt, 1)
	if !ch.OverflowOccurred {
		t.Fatal("roll-over not detected")
	}
	if step := ch.Position - before; step != 14 {
		t.Errorf("position step = %v, want 14", step)
	}
}

func TestChannelBackwardRollover(t *testing.T) {
	ch := NewChannel()
	ch.X4Mode = true
	ch.Update(math.MinInt32+10, false, testRecipDt, 0)
	before := ch.Position
	ch.Update(math.MaxInt32-4, false, testRecipDt, 1)
	if !ch.OverflowOccurred {
		t.Fatal("roll-over not detected")
	}
	if step := ch.Position - before; step != -14 {
		t.Errorf("position step = %v, want -14", step)
	}
}

func TestChannelRolloverNotX4(t *testing.T) {
	ch := NewChannel()
	ch.Update(math.MaxInt32-4, false, testRecipDt, 0)
	before := ch.Position
	ch.Update(math.MinInt32+10, false, testRecipDt, 1)
	if !ch.OverflowOccurred {
		t.Fatal("roll-over not detected")
	}
	if step := ch.Position - before; step != 3 {
		t.Errorf("position step = %v, want 3", step)
	}
}

func TestChannelOverflowIsSticky(t *testing.T) {
	ch := NewChannel()
	ch.X4Mode = true
	ch.Update(math.MaxInt32-4, false, testRecipDt, 0)
	ch.Update(math.MinInt32+10, false, testRecipDt, 1)
	for i := 0; i < 3; i++ {
		before := ch.Position
		ch.Update(ch.RawCounts+5, false, testRecipDt, 2+i)
		if !ch.OverflowOccurred {
			t.Fatalf("cycle %d: overflow cleared without index or reset", i)
		}
		if step := ch.Position - before; step != 5 {
			t.Errorf("cycle %d: incremental step = %v, want 5", i, step)
		}
	}
}

func TestChannelIndexPulseReanchors(t *testing.T) {
	ch := NewChannel()
	ch.X4Mode = true
	ch.PositionScale = 4
	ch.Update(math.MaxInt32-4, false, testRecipDt, 0)
	ch.Update(math.MinInt32+10, false, testRecipDt, 1)
	if !ch.OverflowOccurred {
		t.Fatal("roll-over not detected")
	}
	ch.IndexEnable = true
	velocity := ch.Velocity
	ch.Update(100, true, testRecipDt, 2)
	if ch.OverflowOccurred {
		t.Error("index pulse did not clear overflow")
	}
	if ch.Position != 25 {
		t.Errorf("position = %v, want 25", ch.Position)
	}
	if ch.IndexEnable {
		t.Error("index pulse did not clear index enable")
	}
	if !ch.IndexPulse {
		t.Error("index pulse pin not set")
	}
	if ch.Velocity != velocity {
		t.Errorf("velocity changed on index cycle: %v -> %v", velocity, ch.Velocity)
	}
}

func TestChannelReset(t *testing.T) {
	ch := NewChannel()
	ch.X4Mode = true
	ch.Update(990, false, testRecipDt, 0)
	ch.OverflowOccurred = true
	ch.Reset = true
	ch.Update(1000, false, testRecipDt, 1)
	if ch.Counts != 0 {
		t.Errorf("counts = %d, want 0", ch.Counts)
	}
	if ch.Position != 0 {
		t.Errorf("position = %v, want 0", ch.Position)
	}
	if ch.OverflowOccurred {
		t.Error("reset did not clear overflow")
	}
	if ch.Reset {
		t.Error("reset pin not cleared")
	}
	if ch.ResetOffset() != 1000 {
		t.Errorf("reset offset = %d, want 1000", ch.ResetOffset())
	}
	ch.Update(1010, false, testRecipDt, 2)
	if ch.Counts != 10 || ch.Position != 10 {
		t.Errorf("after reset: counts = %d position = %v, want 10", ch.Counts, ch.Position)
	}
}

func TestChannelResetNotX4(t *testing.T) {
	ch := NewChannel()
	ch.Reset = true
	ch.Update(4000, false, testRecipDt, 0)
	if ch.ResetOffset() != 1000 || ch.Counts != 0 {
		t.Errorf("offset = %d counts = %d, want 1000 and 0", ch.ResetOffset(), ch.Counts)
	}
}

func TestChannelResetNeverRollsOver(t *testing.T) {
	ch := NewChannel()
	ch.X4Mode = true
	ch.Update(math.MaxInt32-4, false, testRecipDt, 0)
	ch.Reset = true
	ch.Update(math.MinInt32+10, false, testRecipDt, 1)
	if ch.OverflowOccurred {
		t.Error("reset cycle treated as roll-over")
	}
	if ch.Counts != 0 || ch.Position != 0 {
		t.Errorf("counts = %d position = %v, want 0", ch.Counts, ch.Position)
	}
}

func TestChannelScaleClamp(t *testing.T) {
	for _, scale := range []float64{0, 1e-21, -1e-21, math.NaN()} {
		ch := NewChannel()
		ch.X4Mode = true
		ch.PositionScale = scale
		ch.Update(500, false, testRecipDt, 0)
		if ch.PositionScale != 1.0 {
			t.Errorf("scale %v: clamped to %v, want 1", scale, ch.PositionScale)
		}
		if ch.ScaleRecip() != 1.0 {
			t.Errorf("scale %v: reciprocal %v, want 1", scale, ch.ScaleRecip())
		}
		if ch.Position != 500 {
			t.Errorf("scale %v: position = %v, want 500", scale, ch.Position)
		}
	}
}

func TestChannelScaleChange(t *testing.T) {
	ch := NewChannel()
	ch.X4Mode = true
	ch.Update(400, false, testRecipDt, 0)
	if ch.Position != 400 {
		t.Fatalf("position = %v, want 400", ch.Position)
	}
	ch.PositionScale = 4
	ch.Update(400, false, testRecipDt, 1)
	if ch.ScaleRecip() != 0.25 || ch.Position != 100 {
		t.Errorf("reciprocal = %v position = %v, want 0.25 and 100", ch.ScaleRecip(), ch.Position)
	}
}

func TestChannelScaleNaNAfterMemo(t *testing.T) {
	ch := NewChannel()
	ch.X4Mode = true
	ch.PositionScale = 2
	ch.Update(100, false, testRecipDt, 0)
	ch.PositionScale = math.NaN()
	for slot := 1; slot < 3; slot++ {
		ch.Update(100+int32(slot)*10, false, testRecipDt, slot)
		if ch.PositionScale != 1.0 || math.IsNaN(ch.Position) || math.IsNaN(ch.Velocity) {
			t.Fatalf("update %d: scale = %v position = %v velocity = %v", slot, ch.PositionScale, ch.Position, ch.Velocity)
		}
	}
	if ch.Position != 120 {
		t.Errorf("position = %v, want 120", ch.Position)
	}
}

func TestChannelVelocityAverage(t *testing.T) {
	const step = 3
	want := step * testRecipDt
	ch := NewChannel()
	ch.X4Mode = true
	for k := 1; k <= AverageSize; k++ {
		ch.Update(int32(k*step), false, testRecipDt, (k-1)%AverageSize)
		expected := want * float64(k) / AverageSize
		if math.Abs(ch.Velocity-expected) > 1e-9 {
			t.Fatalf("tick %d: velocity = %v, want %v", k, ch.Velocity, expected)
		}
		if k < AverageSize && math.Abs(ch.Velocity-want) < 1e-9 {
			t.Fatalf("tick %d: velocity converged before the ring was full", k)
		}
	}
	if math.Abs(ch.Velocity-want) > 1e-9 {
		t.Errorf("velocity = %v, want %v", ch.Velocity, want)
	}
	if math.Abs(ch.VelocityRPM-want*60) > 1e-6 {
		t.Errorf("velocity rpm = %v, want %v", ch.VelocityRPM, want*60)
	}
}
