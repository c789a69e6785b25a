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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
)

func TestHubStream(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// nobody listens yet
	hub.Publish(1, []encoder.ChannelSnapshot{{Channel: 0}})

	ts := httptest.NewServer(hub)
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %s", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	hub.Publish(7, []encoder.ChannelSnapshot{{Channel: 0, Counts: 3}, {Channel: 1, Counts: -3}})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %s", err)
	}
	frame := &SnapshotFrame{}
	if err := json.Unmarshal(data, frame); err != nil {
		t.Fatalf("Unmarshal: %s", err)
	}
	if frame.Cycle != 7 || len(frame.Channels) != 2 || frame.Channels[1].Counts != -3 {
		t.Errorf("frame = %+v", frame)
	}

	conn.Close()
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHubPublishQueuesFrame(t *testing.T) {
	hub := NewHub()
	snaps := []encoder.ChannelSnapshot{{Channel: 0, Counts: 9}}

	hub.Publish(1, snaps)
	select {
	case <-hub.broadcast:
		t.Fatal("frame queued without clients")
	default:
	}

	hub.count.Store(1)
	hub.Publish(2, snaps)
	select {
	case frame := <-hub.broadcast:
		if frame.Cycle != 2 || &frame.Channels[0] != &snaps[0] {
			t.Errorf("frame = %+v, want cycle 2 carrying the published snapshots", frame)
		}
	default:
		t.Fatal("frame not queued")
	}

	for i := 0; i < wsQueueSize+4; i++ {
		hub.Publish(uint64(i), snaps)
	}
	if len(hub.broadcast) != wsQueueSize {
		t.Errorf("queued %d frames, want %d", len(hub.broadcast), wsQueueSize)
	}
}
