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

package state

import (
	"fmt"
)

// ErrBucketNotFound returned when a channel has no bucket in the database
type ErrBucketNotFound struct {
	Name string
}

func (e ErrBucketNotFound) Error() string {
	return fmt.Sprintf("Bucket not found: %s", e.Name)
}

// ErrNoRecords returned when nothing has been persisted for a channel yet
type ErrNoRecords struct {
	Channel int
}

func (e ErrNoRecords) Error() string {
	return fmt.Sprintf("No records for channel %d", e.Channel)
}
