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
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/log"
	"jinr.ru/greenlab/go-encoder/pkg/sim"
	"jinr.ru/greenlab/go-encoder/pkg/srv"
	"jinr.ru/greenlab/go-encoder/pkg/state"
)

// StartEncoderServer runs the control loop against a simulated board together
// with the pin API, the websocket stream and the snapshot store until ctx is done.
func StartEncoderServer(ctx context.Context, cfg *config.Config) error {
	board := sim.NewBoardFromConfig(cfg.NumChannels(), cfg.Sim)
	driver, err := srv.NewDriver(cfg, srv.NewSimTransport(board))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var store *state.Store
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return err
		}
		store, err = state.NewStore(cfg.DBPath, cfg.NumChannels())
		if err != nil {
			return err
		}
		defer store.Close()
	}

	hub := srv.NewHub()
	api, err := srv.NewApiServer(ctx, cfg, driver, hub, store)
	if err != nil {
		return err
	}

	if store != nil {
		persister := srv.NewPersister(store, cfg.PersistEvery)
		driver.AddPublisher(persister)
		g.Go(func() error { return persister.Run(ctx) })
		log.Info("Persisting snapshots every %d cycles to %s", cfg.PersistEvery, cfg.DBPath)
	}
	driver.AddPublisher(hub)
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(api.Run)
	g.Go(func() error { return driver.Run(ctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
