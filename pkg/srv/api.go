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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/log"
	"jinr.ru/greenlab/go-encoder/pkg/state"
)

const (
	DefaultHistoryLimit = 16
)

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	driver *Driver
	hub    *Hub
	store  *state.Store
	doc    *loads.Document
}

// NewApiServer creates the pin API. store may be nil, then history is not served.
func NewApiServer(ctx context.Context, cfg *config.Config, driver *Driver, hub *Hub, store *state.Store) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s port: %d", cfg.ApiAddress, cfg.ApiPort)

	doc, err := loads.Analyzed(json.RawMessage(swaggerJSON), "")
	if err != nil {
		return nil, err
	}

	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		driver:  driver,
		hub:     hub,
		store:   store,
		doc:     doc,
	}
	s.configureRouter()
	return s, nil
}

// Run serves the API until the context is done
func (s *ApiServer) Run() error {
	log.Info("Starting API server: address: %s port: %d", s.ApiAddress, s.ApiPort)
	handler := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.LoggingHandler(log.Writer(), s.Router))
	httpServer := &http.Server{
		Handler: handler,
		Addr:    fmt.Sprintf("%s:%d", s.ApiAddress, s.ApiPort),
	}
	go func() {
		<-s.Context.Done()
		httpServer.Shutdown(context.Background())
	}()
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	subRouter.HandleFunc("/info", s.handleInfo()).Methods("GET")
	subRouter.HandleFunc("/channels", s.handleChannels()).Methods("GET")
	subRouter.HandleFunc("/channels/{ch:[0-9]+}", s.handleChannel()).Methods("GET")
	subRouter.HandleFunc("/channels/{ch:[0-9]+}", s.handlePinWrite()).Methods("POST")
	subRouter.HandleFunc("/history/{ch:[0-9]+}", s.handleHistory()).Methods("GET")
	if s.hub != nil {
		subRouter.Handle("/ws", s.hub).Methods("GET")
	}
	s.Router.HandleFunc("/swagger.json", s.handleSwagger()).Methods("GET")
	s.Router.Handle("/docs", middleware.Redoc(middleware.RedocOpts{
		BasePath: "/",
		Path:     "docs",
		SpecURL:  "/swagger.json",
		Title:    s.doc.Spec().Info.Title,
	}, http.NotFoundHandler())).Methods("GET")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error while encoding response: %s", err)
	}
}

func errorStatus(err error) int {
	var notFound ErrChannelNotFound
	var stopped ErrDriverStopped
	var bucket state.ErrBucketNotFound
	switch {
	case errors.As(err, &notFound), errors.As(err, &bucket):
		return http.StatusNotFound
	case errors.As(err, &stopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func channelVar(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["ch"])
}

func (s *ApiServer) handleInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.driver.Info())
	}
}

func (s *ApiServer) handleChannels() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.driver.Snapshots())
	}
}

func (s *ApiServer) handleChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channelVar(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		snap, err := s.driver.Snapshot(ch)
		if err != nil {
			http.Error(w, err.Error(), errorStatus(err))
			return
		}
		writeJSON(w, snap)
	}
}

func (s *ApiServer) handlePinWrite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channelVar(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pins := PinWrite{}
		if err := json.NewDecoder(r.Body).Decode(&pins); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Debug("Handling pin write request: channel: %d", ch)
		snap, err := s.driver.Submit(r.Context(), ch, pins)
		if err != nil {
			http.Error(w, err.Error(), errorStatus(err))
			return
		}
		writeJSON(w, snap)
	}
}

func (s *ApiServer) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			http.Error(w, "Snapshot store disabled", http.StatusNotFound)
			return
		}
		ch, err := channelVar(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		limit := DefaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil || limit <= 0 {
				http.Error(w, fmt.Sprintf("Bad limit: %s", v), http.StatusBadRequest)
				return
			}
		}
		records, err := s.store.History(ch, limit)
		if err != nil {
			http.Error(w, err.Error(), errorStatus(err))
			return
		}
		writeJSON(w, records)
	}
}

func (s *ApiServer) handleSwagger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(s.doc.Raw())
	}
}
