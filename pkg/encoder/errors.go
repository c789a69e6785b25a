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
	"fmt"
)

// ErrModuleConfig returned when the encoder section of the board configuration is truncated
type ErrModuleConfig struct {
	Size int
}

func (e ErrModuleConfig) Error() string {
	return fmt.Sprintf("Encoder module config too short: %d bytes, need %d", e.Size, ModuleConfigSize)
}
