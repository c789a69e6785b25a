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

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/log"
	"jinr.ru/greenlab/go-encoder/pkg/state"
)

type batch struct {
	cycle uint64
	snaps []encoder.ChannelSnapshot
}

// Persister writes every n-th cycle to the snapshot store outside the control loop
type Persister struct {
	store *state.Store
	every uint64
	ch    chan batch
}

var _ Publisher = &Persister{}

func NewPersister(store *state.Store, every int) *Persister {
	if every <= 0 {
		every = 1
	}
	return &Persister{
		store: store,
		every: uint64(every),
		ch:    make(chan batch, 1),
	}
}

// Publish hands the snapshots to Run. A batch is dropped when the previous one
// is still being written.
func (p *Persister) Publish(cycle uint64, snaps []encoder.ChannelSnapshot) {
	if cycle%p.every != 0 {
		return
	}
	select {
	case p.ch <- batch{cycle: cycle, snaps: snaps}:
	default:
		log.Debug("Snapshot store busy, cycle %d not persisted", cycle)
	}
}

// Run writes published batches until ctx is done
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-p.ch:
			if err := p.store.Put(b.cycle, b.snaps); err != nil {
				log.Error("Error while persisting cycle %d: %s", b.cycle, err)
			}
		}
	}
}
