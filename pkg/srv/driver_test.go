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

package srv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/sim"
)

type recorder struct {
	mu     sync.Mutex
	cycles []uint64
	last   []encoder.ChannelSnapshot
}

func (r *recorder) Publish(cycle uint64, snaps []encoder.ChannelSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, cycle)
	r.last = snaps
}

func newTestDriver(t *testing.T, sims ...*config.SimChannelConfig) (*Driver, *sim.Board) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.PeriodNs = 100000
	cfg.DBPath = ""
	cfg.SetNumChannels(len(sims))
	cfg.Sim = &config.SimConfig{Channels: sims}
	board := sim.NewBoardFromConfig(len(sims), cfg.Sim)
	d, err := NewDriver(cfg, NewSimTransport(board))
	if err != nil {
		t.Fatalf("NewDriver: %s", err)
	}
	return d, board
}

func tick(t *testing.T, d *Driver, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := d.Tick(context.Background()); err != nil {
			t.Fatalf("Tick: %s", err)
		}
	}
}

// enqueue puts a request in the queue so the next tick applies it
func enqueue(d *Driver, channel int, w PinWrite) *pinRequest {
	r := &pinRequest{channel: channel, write: w, done: make(chan pinReply, 1)}
	d.requests <- r
	return r
}

func TestDriverTick(t *testing.T) {
	d, _ := newTestDriver(t, &config.SimChannelConfig{Step: 10}, &config.SimChannelConfig{Step: -3})
	rec := &recorder{}
	d.AddPublisher(rec)

	tick(t, d, 3)

	if d.Cycle() != 3 {
		t.Errorf("Cycle() = %d, want 3", d.Cycle())
	}
	snaps := d.Snapshots()
	if snaps[0].Counts != 30 || snaps[1].Counts != -9 {
		t.Errorf("counts = %d, %d, want 30, -9", snaps[0].Counts, snaps[1].Counts)
	}
	if snaps[0].Position != 30 {
		t.Errorf("position = %g, want 30", snaps[0].Position)
	}
	if len(rec.cycles) != 3 || rec.cycles[2] != 3 {
		t.Errorf("published cycles = %v", rec.cycles)
	}
	if rec.last[1].Channel != 1 {
		t.Errorf("snapshot channel = %d, want 1", rec.last[1].Channel)
	}

	tick(t, d, 1)
	if snaps[0].Counts != 30 {
		t.Errorf("published snapshots modified by the next cycle: counts = %d", snaps[0].Counts)
	}
}

func TestDriverReset(t *testing.T) {
	d, _ := newTestDriver(t, &config.SimChannelConfig{Step: 10})
	tick(t, d, 3)

	yes := true
	r := enqueue(d, 0, PinWrite{Reset: &yes})
	tick(t, d, 1)
	reply := <-r.done
	if reply.err != nil {
		t.Fatalf("pin write: %s", reply.err)
	}
	if !reply.snap.Reset || reply.snap.Counts != 40 {
		t.Errorf("reply: reset = %t counts = %d, want true 40", reply.snap.Reset, reply.snap.Counts)
	}
	snap, _ := d.Snapshot(0)
	if !snap.Reset || snap.Counts != 40 {
		t.Errorf("after write: reset = %t counts = %d, want true 40", snap.Reset, snap.Counts)
	}

	tick(t, d, 1)
	snap, _ = d.Snapshot(0)
	if snap.Reset || snap.Counts != 0 {
		t.Errorf("after reset cycle: reset = %t counts = %d, want false 0", snap.Reset, snap.Counts)
	}

	tick(t, d, 1)
	snap, _ = d.Snapshot(0)
	if snap.Counts != 10 || snap.RawCounts != 60 {
		t.Errorf("counts = %d raw = %d, want 10 60", snap.Counts, snap.RawCounts)
	}
}

func TestDriverIndexHoming(t *testing.T) {
	d, board := newTestDriver(t, &config.SimChannelConfig{Step: 10, CountsPerRev: 30})

	yes := true
	r := enqueue(d, 0, PinWrite{IndexEnable: &yes})
	tick(t, d, 1)
	if reply := <-r.done; reply.err != nil || !reply.snap.IndexEnable {
		t.Fatalf("pin write: %+v", reply)
	}
	if !board.Channels[0].IndexEnable {
		t.Fatal("index enable not written to the board")
	}

	tick(t, d, 2)
	snap, _ := d.Snapshot(0)
	if !snap.IndexPulse || snap.IndexEnable || snap.Counts != 0 || snap.Position != 0 {
		t.Errorf("index cycle: %+v", snap)
	}
	if board.Channels[0].IndexPulse {
		t.Error("index pulse not reset on the board")
	}

	tick(t, d, 1)
	snap, _ = d.Snapshot(0)
	if snap.IndexPulse || snap.Counts != 10 {
		t.Errorf("after index: pulse = %t counts = %d, want false 10", snap.IndexPulse, snap.Counts)
	}
}

func TestDriverParameters(t *testing.T) {
	d, _ := newTestDriver(t, &config.SimChannelConfig{Step: 8})
	scale := 4.0
	no := false
	r := enqueue(d, 0, PinWrite{PositionScale: &scale, X4Mode: &no})
	tick(t, d, 1)
	if reply := <-r.done; reply.err != nil || reply.snap.PositionScale != 4 || reply.snap.X4Mode {
		t.Fatalf("pin write: %+v", reply)
	}
	tick(t, d, 1)
	snap, _ := d.Snapshot(0)
	if snap.Counts != 4 || snap.Position != 1 || snap.X4Mode || snap.PositionScale != 4 {
		t.Errorf("snapshot: %+v", snap)
	}
}

func TestDriverSubmit(t *testing.T) {
	d, _ := newTestDriver(t, &config.SimChannelConfig{Step: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	yes := true
	errc := make(chan error, 1)
	go func() {
		snap, err := d.Submit(ctx, 0, PinWrite{IndexEnable: &yes})
		if err == nil && !snap.IndexEnable {
			err = errors.New("submit returned the channel before the write")
		}
		errc <- err
	}()
	for {
		tick(t, d, 1)
		select {
		case err := <-errc:
			if err != nil {
				t.Fatalf("Submit: %s", err)
			}
			snap, _ := d.Snapshot(0)
			if !snap.IndexEnable {
				t.Error("index enable not applied")
			}
			return
		case <-ctx.Done():
			t.Fatal("pin write never applied")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestDriverChannelNotFound(t *testing.T) {
	d, _ := newTestDriver(t, &config.SimChannelConfig{})
	var notFound ErrChannelNotFound
	if _, err := d.Submit(context.Background(), 1, PinWrite{}); !errors.As(err, &notFound) {
		t.Errorf("Submit: err = %v", err)
	}
	if _, err := d.Snapshot(-1); !errors.As(err, &notFound) {
		t.Errorf("Snapshot: err = %v", err)
	}
	r := enqueue(d, 3, PinWrite{})
	tick(t, d, 1)
	if reply := <-r.done; !errors.As(reply.err, &notFound) {
		t.Errorf("apply: err = %v", reply.err)
	}
}

func TestDriverRunStopped(t *testing.T) {
	d, _ := newTestDriver(t, &config.SimChannelConfig{Step: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for d.Cycle() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("control loop not ticking")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run: err = %v", err)
	}

	var stopped ErrDriverStopped
	if _, err := d.Submit(context.Background(), 0, PinWrite{}); !errors.As(err, &stopped) {
		t.Errorf("Submit after stop: err = %v", err)
	}
}

func TestDriverInfo(t *testing.T) {
	d, _ := newTestDriver(t, &config.SimChannelConfig{}, &config.SimChannelConfig{}, &config.SimChannelConfig{})
	tick(t, d, 2)
	info := d.Info()
	if info.ModuleID != encoder.ModuleID || info.ModuleName != encoder.ModuleName {
		t.Errorf("module = %x %s", info.ModuleID, info.ModuleName)
	}
	if info.NumChannels != 3 || info.Cycle != 2 || info.PeriodNs != 100000 {
		t.Errorf("info = %+v", info)
	}
}

func TestNewDriverInvalidConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.PeriodNs = 0
	if _, err := NewDriver(cfg, NewSimTransport(sim.NewBoard(cfg.NumChannels()))); err == nil {
		t.Error("zero period accepted")
	}
}
