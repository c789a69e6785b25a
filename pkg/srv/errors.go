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
	"fmt"
)

// ErrChannelNotFound returned for a channel index outside the board
type ErrChannelNotFound struct {
	Channel int
	NumChannels int
}

func (e ErrChannelNotFound) Error() string {
	return fmt.Sprintf("Channel %d not found, board has %d channels", e.Channel, e.NumChannels)
}

// ErrDriverStopped returned when a pin request can not be served because the control loop is not running
type ErrDriverStopped struct{}

func (e ErrDriverStopped) Error() string {
	return "Control loop stopped"
}

// ErrAffinityUnsupported returned when the control loop can not be pinned to a CPU on this platform
type ErrAffinityUnsupported struct {
	CPU int
}

func (e ErrAffinityUnsupported) Error() string {
	return fmt.Sprintf("Can not pin control loop to CPU %d on this platform", e.CPU)
}
