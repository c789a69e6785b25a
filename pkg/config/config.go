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

package config

import (
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
)

// ChannelConfig holds the parameters of one encoder channel
type ChannelConfig struct {
	PositionScale float64 `json:"position_scale"`
	X4Mode bool `json:"x4_mode"`
}

// SimChannelConfig describes the motion of one simulated encoder
type SimChannelConfig struct {
	// Step is the number of counts the encoder moves every period
	Step int32 `json:"step"`
	// Start is the counter value at startup
	Start int32 `json:"start,omitempty"`
	// CountsPerRev is the distance between two index pulses, zero disables the index
	CountsPerRev int32 `json:"counts_per_rev,omitempty"`
}

// SimConfig configures the simulated board used by the run command
type SimConfig struct {
	Channels []*SimChannelConfig `json:"channels"`
}

type Config struct {
	LogLevel string `json:"log_level,omitempty"`
	PeriodNs int64 `json:"period_ns"`
	ApiAddress string `json:"api_address,omitempty"`
	ApiPort int `json:"api_port,omitempty"`
	DBPath string `json:"db_path,omitempty"`
	// PersistEvery is the number of periods between two persisted snapshots
	PersistEvery int `json:"persist_every,omitempty"`
	// CPU the control loop is pinned to, NoCPU to let the scheduler decide
	CPU int `json:"cpu"`
	Channels []*ChannelConfig `json:"channels"`
	Sim *SimConfig `json:"sim,omitempty"`
	filepath string
}

// NumChannels returns the number of configured encoder channels
func (c *Config) NumChannels() int {
	return len(c.Channels)
}

// SetNumChannels resizes the channel list, new channels get default parameters
// and a simulated encoder standing still
func (c *Config) SetNumChannels(n int) {
	if n < 0 {
		n = 0
	}
	for len(c.Channels) < n {
		c.Channels = append(c.Channels, &ChannelConfig{
			PositionScale: DefaultPositionScale,
			X4Mode: true,
		})
	}
	c.Channels = c.Channels[:n]
	if c.Sim != nil && len(c.Sim.Channels) > n {
		c.Sim.Channels = c.Sim.Channels[:n]
	}
}

// ModuleConfig returns the encoder section of the board configuration for the
// configured channels
func (c *Config) ModuleConfig() []byte {
	buf := make([]byte, encoder.ModuleConfigSize)
	binary.BigEndian.PutUint32(buf, uint32(len(c.Channels)))
	return buf
}

// Validate checks values which would make the control loop unusable
func (c *Config) Validate() error {
	if c.PeriodNs <= 0 {
		return ErrInvalidConfig{What: fmt.Sprintf("period_ns must be positive, got %d", c.PeriodNs)}
	}
	for i, ch := range c.Channels {
		if ch == nil {
			return ErrInvalidConfig{What: fmt.Sprintf("channel %d is empty", i)}
		}
		if math.IsNaN(ch.PositionScale) || math.IsInf(ch.PositionScale, 0) {
			return ErrInvalidConfig{What: fmt.Sprintf("channel %d position_scale must be finite", i)}
		}
	}
	if c.Sim != nil && len(c.Sim.Channels) > len(c.Channels) {
		return ErrInvalidConfig{What: fmt.Sprintf("sim has %d channels, board has %d", len(c.Sim.Channels), len(c.Channels))}
	}
	return nil
}

// Path returns the path of the config file
func (c *Config) Path() string {
	return c.filepath
}

// SetPath sets the path of the config file used by Load and Persist
func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	err = ioutil.WriteFile(c.filepath, data, 0644)
	if err != nil {
		return err
	}

	return nil
}

// Load reads the config file over the current values. A missing file is not an error.
func (c *Config) Load() error {
	data, err := ioutil.ReadFile(c.filepath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, DBFile)
}

func NewDefaultConfig() *Config {
	c := &Config{
		LogLevel: DefaultLogLevel,
		PeriodNs: DefaultPeriodNs,
		ApiAddress: DefaultApiAddress,
		ApiPort: DefaultApiPort,
		DBPath: DefaultDBPath(),
		PersistEvery: DefaultPersistEvery,
		CPU: NoCPU,
		Sim: &SimConfig{},
		filepath: DefaultConfigPath(),
	}
	for i := 0; i < DefaultNumChannels; i++ {
		c.Channels = append(c.Channels, &ChannelConfig{
			PositionScale: DefaultPositionScale,
			X4Mode: true,
		})
		c.Sim.Channels = append(c.Sim.Channels, &SimChannelConfig{
			Step: DefaultSimStep * int32(i+1),
			CountsPerRev: DefaultSimCountsPerRev,
		})
	}
	return c
}
