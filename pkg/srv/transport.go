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

	"jinr.ru/greenlab/go-encoder/pkg/sim"
)

// Transport moves the cycle buffers between the host and the FPGA
type Transport interface {
	// Read fills buf with the read buffer of the current cycle
	Read(ctx context.Context, buf []byte) error
	// Write sends the write buffer of the current cycle
	Write(ctx context.Context, buf []byte) error
}

// SimTransport connects the driver to a simulated board
type SimTransport struct {
	Board *sim.Board
}

var _ Transport = &SimTransport{}

func NewSimTransport(board *sim.Board) *SimTransport {
	return &SimTransport{Board: board}
}

func (t *SimTransport) Read(ctx context.Context, buf []byte) error {
	return t.Board.Read(buf)
}

func (t *SimTransport) Write(ctx context.Context, buf []byte) error {
	return t.Board.Write(buf)
}
