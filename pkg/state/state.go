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
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/log"
)

const (
	BucketPrefix = "channel_"
	// DefaultHistoryLimit is the number of snapshots kept per channel
	DefaultHistoryLimit = 256
)

// Record is a persisted channel snapshot together with the cycle it was taken in
type Record struct {
	Cycle uint64 `json:"cycle"`
	encoder.ChannelSnapshot
}

// Store keeps the recent snapshots of every channel in a bbolt database
type Store struct {
	DB *bbolt.DB
	HistoryLimit int
}

// NewStore opens the database at path and creates a bucket for every channel
func NewStore(path string, numChannels int) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	if err = db.Update(func(tx *bbolt.Tx) error {
		for i := 0; i < numChannels; i++ {
			if _, err := tx.CreateBucketIfNotExists([]byte(BucketName(i))); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		DB: db,
		HistoryLimit: DefaultHistoryLimit,
	}, nil
}

func BucketName(channel int) string {
	return fmt.Sprintf("%s%d", BucketPrefix, channel)
}

func uint64ToByte(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Close ...
func (s *Store) Close() error {
	return s.DB.Close()
}

// Put stores the snapshots of one cycle and drops the oldest records beyond HistoryLimit
func (s *Store) Put(cycle uint64, snaps []encoder.ChannelSnapshot) error {
	log.Debug("Persisting %d snapshots of cycle %d", len(snaps), cycle)
	return s.DB.Update(func(tx *bbolt.Tx) error {
		for _, snap := range snaps {
			b := tx.Bucket([]byte(BucketName(snap.Channel)))
			if b == nil {
				return ErrBucketNotFound{Name: BucketName(snap.Channel)}
			}
			data, err := yaml.Marshal(&Record{Cycle: cycle, ChannelSnapshot: snap})
			if err != nil {
				return err
			}
			if err := b.Put(uint64ToByte(cycle), data); err != nil {
				return err
			}
			if err := trim(b, s.HistoryLimit); err != nil {
				return err
			}
		}
		return nil
	})
}

func trim(b *bbolt.Bucket, limit int) error {
	if limit <= 0 {
		return nil
	}
	c := b.Cursor()
	n := 0
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	excess := n - limit
	for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
		if err := c.Delete(); err != nil {
			return err
		}
		excess--
	}
	return nil
}

// Last returns the most recent record of a channel
func (s *Store) Last(channel int) (*Record, error) {
	records, err := s.History(channel, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords{Channel: channel}
	}
	return records[0], nil
}

// History returns up to limit records of a channel, newest first
func (s *Store) History(channel int, limit int) ([]*Record, error) {
	var records []*Record
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(channel)))
		if b == nil {
			return ErrBucketNotFound{Name: BucketName(channel)}
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			record := &Record{}
			if err := yaml.Unmarshal(v, record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return records, nil
}
