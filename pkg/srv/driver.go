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
	"runtime"
	"sync"
	"time"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/log"
)

const (
	// RequestQueueSize is the number of pin requests waiting for the next cycle
	RequestQueueSize = 64
)

// PinWrite changes the inputs of a channel. Nil fields are left untouched.
type PinWrite struct {
	Reset         *bool    `json:"reset,omitempty"`
	IndexEnable   *bool    `json:"index_enable,omitempty"`
	PositionScale *float64 `json:"position_scale,omitempty"`
	X4Mode        *bool    `json:"x4_mode,omitempty"`
}

type pinRequest struct {
	channel int
	write   PinWrite
	done    chan pinReply
}

// pinReply carries the channel as it is right after the write was applied
type pinReply struct {
	snap encoder.ChannelSnapshot
	err  error
}

// Publisher receives the snapshots of every cycle. Publish is called from the
// control loop and must not block. snaps must not be modified.
type Publisher interface {
	Publish(cycle uint64, snaps []encoder.ChannelSnapshot)
}

// Info describes the running encoder module
type Info struct {
	ModuleID    uint32 `json:"module_id"`
	ModuleName  string `json:"module_name"`
	NumChannels int    `json:"num_channels"`
	PeriodNs    int64  `json:"period_ns"`
	Cycle       uint64 `json:"cycle"`
}

// Driver runs the control loop. It is the only goroutine touching the engine;
// other goroutines read the published snapshots and queue pin writes, which are
// applied between the read and the write half of a cycle.
type Driver struct {
	*config.Config
	engine     *encoder.Engine
	transport  Transport
	requests   chan *pinRequest
	publishers []Publisher

	readBuf  []byte
	writeBuf []byte
	scratch  []encoder.ChannelSnapshot
	overflow []bool

	mu     sync.RWMutex
	latest []encoder.ChannelSnapshot
	cycle  uint64

	stopped  chan struct{}
	stopOnce sync.Once
}

// NewDriver creates the engine for the channels of cfg and applies their parameters
func NewDriver(cfg *config.Config, transport Transport) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine, _, err := encoder.NewEngineFromConfig(cfg.ModuleConfig())
	if err != nil {
		return nil, err
	}
	for i, chCfg := range cfg.Channels {
		ch := engine.Channel(i)
		ch.PositionScale = chCfg.PositionScale
		ch.X4Mode = chCfg.X4Mode
	}
	log.Debug("Encoder module: %d channels, read buffer %d bytes, write buffer %d bytes",
		engine.NumChannels(), engine.ReadBufferSize(), engine.WriteBufferSize())

	d := &Driver{
		Config:    cfg,
		engine:    engine,
		transport: transport,
		requests:  make(chan *pinRequest, RequestQueueSize),
		readBuf:   make([]byte, engine.ReadBufferSize()),
		writeBuf:  make([]byte, engine.WriteBufferSize()),
		overflow:  make([]bool, engine.NumChannels()),
		stopped:   make(chan struct{}),
	}
	d.latest = engine.SnapshotAll(nil)
	return d, nil
}

// AddPublisher registers p for the snapshots of every following cycle. It must
// be called before Run.
func (d *Driver) AddPublisher(p Publisher) {
	d.publishers = append(d.publishers, p)
}

// NumChannels returns the number of encoder channels
func (d *Driver) NumChannels() int {
	return d.engine.NumChannels()
}

// Run ticks the control loop every period until ctx is done or the transport fails
func (d *Driver) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer d.stop()

	if d.CPU != config.NoCPU {
		if err := pinThread(d.CPU); err != nil {
			log.Warning("Control loop not pinned to CPU %d: %s", d.CPU, err)
		} else {
			log.Info("Control loop pinned to CPU %d", d.CPU)
		}
	}

	log.Info("Starting control loop: %d channels, period %s", d.NumChannels(), time.Duration(d.PeriodNs))
	ticker := time.NewTicker(time.Duration(d.PeriodNs))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping control loop after %d cycles", d.Cycle())
			return ctx.Err()
		case <-ticker.C:
			if err := d.Tick(ctx); err != nil {
				log.Error("Control loop failed: %s", err)
				return err
			}
		}
	}
}

func (d *Driver) stop() {
	d.stopOnce.Do(func() {
		close(d.stopped)
		for {
			select {
			case r := <-d.requests:
				r.done <- pinReply{err: ErrDriverStopped{}}
			default:
				return
			}
		}
	})
}

// Tick runs one cycle: read buffer, pin requests, write buffer, publish
func (d *Driver) Tick(ctx context.Context) error {
	if err := d.transport.Read(ctx, d.readBuf); err != nil {
		return err
	}
	d.engine.ProcessRead(d.readBuf, d.PeriodNs)
	d.applyRequests()
	d.engine.PrepareWrite(d.writeBuf)
	if err := d.transport.Write(ctx, d.writeBuf); err != nil {
		return err
	}
	d.publish()
	return nil
}

func (d *Driver) applyRequests() {
	for {
		select {
		case r := <-d.requests:
			r.done <- d.apply(r)
		default:
			return
		}
	}
}

func (d *Driver) apply(r *pinRequest) pinReply {
	if r.channel < 0 || r.channel >= d.engine.NumChannels() {
		return pinReply{err: ErrChannelNotFound{Channel: r.channel, NumChannels: d.engine.NumChannels()}}
	}
	ch := d.engine.Channel(r.channel)
	w := r.write
	if w.Reset != nil {
		ch.Reset = *w.Reset
	}
	if w.IndexEnable != nil {
		ch.IndexEnable = *w.IndexEnable
	}
	if w.PositionScale != nil {
		ch.PositionScale = *w.PositionScale
	}
	if w.X4Mode != nil {
		ch.X4Mode = *w.X4Mode
	}
	snap := ch.Snapshot(r.channel)
	log.Debug("Channel %d pins written: %+v", r.channel, snap)
	return pinReply{snap: snap}
}

func (d *Driver) publish() {
	d.scratch = d.engine.SnapshotAll(d.scratch)
	for i := range d.scratch {
		if d.scratch[i].OverflowOccurred != d.overflow[i] {
			d.overflow[i] = d.scratch[i].OverflowOccurred
			if d.overflow[i] {
				log.Warning("Channel %d: counter rolled over, position is tracked incrementally", i)
			} else {
				log.Info("Channel %d: absolute position restored", i)
			}
		}
	}
	snaps := make([]encoder.ChannelSnapshot, len(d.scratch))
	copy(snaps, d.scratch)

	d.mu.Lock()
	d.cycle++
	cycle := d.cycle
	d.latest = snaps
	d.mu.Unlock()

	for _, p := range d.publishers {
		p.Publish(cycle, snaps)
	}
}

// Cycle returns the number of completed cycles
func (d *Driver) Cycle() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cycle
}

// Snapshots returns the channel snapshots of the last completed cycle
func (d *Driver) Snapshots() []encoder.ChannelSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest
}

// Snapshot returns the snapshot of one channel of the last completed cycle
func (d *Driver) Snapshot(channel int) (encoder.ChannelSnapshot, error) {
	snaps := d.Snapshots()
	if channel < 0 || channel >= len(snaps) {
		return encoder.ChannelSnapshot{}, ErrChannelNotFound{Channel: channel, NumChannels: len(snaps)}
	}
	return snaps[channel], nil
}

// Info describes the module and the progress of the control loop
func (d *Driver) Info() *Info {
	return &Info{
		ModuleID:    encoder.ModuleID,
		ModuleName:  encoder.ModuleName,
		NumChannels: d.NumChannels(),
		PeriodNs:    d.PeriodNs,
		Cycle:       d.Cycle(),
	}
}

// Submit queues a pin write and waits until the control loop has applied it.
// It returns the channel as it is right after the write, before the write
// half of the cycle.
func (d *Driver) Submit(ctx context.Context, channel int, w PinWrite) (encoder.ChannelSnapshot, error) {
	if channel < 0 || channel >= d.NumChannels() {
		return encoder.ChannelSnapshot{}, ErrChannelNotFound{Channel: channel, NumChannels: d.NumChannels()}
	}
	r := &pinRequest{channel: channel, write: w, done: make(chan pinReply, 1)}
	select {
	case d.requests <- r:
	case <-d.stopped:
		return encoder.ChannelSnapshot{}, ErrDriverStopped{}
	case <-ctx.Done():
		return encoder.ChannelSnapshot{}, ctx.Err()
	}
	select {
	case reply := <-r.done:
		return reply.snap, reply.err
	case <-d.stopped:
		// stop drains the queue, the reply may already be there
		select {
		case reply := <-r.done:
			return reply.snap, reply.err
		default:
			return encoder.ChannelSnapshot{}, ErrDriverStopped{}
		}
	case <-ctx.Done():
		return encoder.ChannelSnapshot{}, ctx.Err()
	}
}
