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

package command

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/sim"
	"jinr.ru/greenlab/go-encoder/pkg/srv"
	"jinr.ru/greenlab/go-encoder/pkg/state"
)

func newTestClient(t *testing.T) (*ApiClient, *srv.Driver, *state.Store) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.PeriodNs = 100000
	cfg.SetNumChannels(2)
	cfg.Sim = &config.SimConfig{Channels: []*config.SimChannelConfig{{Step: 2}, {Step: 5}}}
	driver, err := srv.NewDriver(cfg, srv.NewSimTransport(sim.NewBoardFromConfig(2, cfg.Sim)))
	if err != nil {
		t.Fatalf("NewDriver: %s", err)
	}
	store, err := state.NewStore(filepath.Join(t.TempDir(), "snapshots.db"), 2)
	if err != nil {
		t.Fatalf("NewStore: %s", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	api, err := srv.NewApiServer(ctx, cfg, driver, nil, store)
	if err != nil {
		t.Fatalf("NewApiServer: %s", err)
	}
	ts := httptest.NewServer(api.Router)
	t.Cleanup(ts.Close)

	c := NewApiClient(cfg)
	c.ApiPrefix = ts.URL + "/api"
	return c, driver, store
}

func TestClientRead(t *testing.T) {
	c, driver, _ := newTestClient(t)
	for i := 0; i < 2; i++ {
		if err := driver.Tick(context.Background()); err != nil {
			t.Fatalf("Tick: %s", err)
		}
	}

	info, err := c.Info()
	if err != nil {
		t.Fatalf("Info: %s", err)
	}
	if info.ModuleID != encoder.ModuleID || info.NumChannels != 2 {
		t.Errorf("info = %+v", info)
	}

	snaps, err := c.Channels()
	if err != nil {
		t.Fatalf("Channels: %s", err)
	}
	if len(snaps) != 2 || snaps[1].Counts != 10 {
		t.Errorf("channels = %+v", snaps)
	}

	snap, err := c.Channel(0)
	if err != nil {
		t.Fatalf("Channel: %s", err)
	}
	if snap.Counts != 4 {
		t.Errorf("counts = %d, want 4", snap.Counts)
	}

	if _, err := c.Channel(9); err == nil {
		t.Error("unknown channel read without error")
	}
}

func TestClientWrite(t *testing.T) {
	c, driver, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx)

	yes := true
	snap, err := c.Write(1, &srv.PinWrite{IndexEnable: &yes})
	if err != nil {
		t.Fatalf("Write: %s", err)
	}
	if snap.Channel != 1 || !snap.IndexEnable {
		t.Errorf("written channel = %+v", snap)
	}
	if _, err := c.Write(2, &srv.PinWrite{IndexEnable: &yes}); err == nil {
		t.Error("unknown channel written without error")
	}
}

func TestClientHistory(t *testing.T) {
	c, driver, store := newTestClient(t)
	for i := 0; i < 4; i++ {
		if err := driver.Tick(context.Background()); err != nil {
			t.Fatalf("Tick: %s", err)
		}
		if err := store.Put(driver.Cycle(), driver.Snapshots()); err != nil {
			t.Fatalf("Put: %s", err)
		}
	}
	records, err := c.History(1, 3)
	if err != nil {
		t.Fatalf("History: %s", err)
	}
	if len(records) != 3 || records[0].Cycle != 4 || records[0].Counts != 20 {
		t.Errorf("records: %d, first %+v", len(records), records[0])
	}
}
