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
	"errors"
	"fmt"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/srv"
	"jinr.ru/greenlab/go-encoder/pkg/state"
)

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config: cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d/api", cfg.ApiAddress, cfg.ApiPort),
	}
}

func (c *ApiClient) channelUrl(channel int) string {
	return fmt.Sprintf("%s/channels/%d", c.ApiPrefix, channel)
}

func (c *ApiClient) historyUrl(channel int) string {
	return fmt.Sprintf("%s/history/%d", c.ApiPrefix, channel)
}

func checkStatus(r *req.Resp) error {
	if r.Response().StatusCode != 200 {
		return errors.New(r.Response().Status)
	}
	return nil
}

// Info sends request to get the description of the encoder module
func (c *ApiClient) Info() (*srv.Info, error) {
	r, err := req.Get(fmt.Sprintf("%s/info", c.ApiPrefix))
	if err != nil {
		return nil, err
	}
	if err = checkStatus(r); err != nil {
		return nil, err
	}
	info := &srv.Info{}
	err = r.ToJSON(info)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Channels sends request to get the pins of all channels
func (c *ApiClient) Channels() ([]encoder.ChannelSnapshot, error) {
	r, err := req.Get(fmt.Sprintf("%s/channels", c.ApiPrefix))
	if err != nil {
		return nil, err
	}
	if err = checkStatus(r); err != nil {
		return nil, err
	}
	var snaps []encoder.ChannelSnapshot
	err = r.ToJSON(&snaps)
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// Channel sends request to get the pins of one channel
func (c *ApiClient) Channel(channel int) (*encoder.ChannelSnapshot, error) {
	r, err := req.Get(c.channelUrl(channel))
	if err != nil {
		return nil, err
	}
	if err = checkStatus(r); err != nil {
		return nil, err
	}
	snap := &encoder.ChannelSnapshot{}
	err = r.ToJSON(snap)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Write sends request to write the input pins of a channel and returns the
// channel with the write applied
func (c *ApiClient) Write(channel int, pins *srv.PinWrite) (*encoder.ChannelSnapshot, error) {
	r, err := req.Post(c.channelUrl(channel), req.BodyJSON(pins))
	if err != nil {
		return nil, err
	}
	if err = checkStatus(r); err != nil {
		return nil, err
	}
	snap := &encoder.ChannelSnapshot{}
	err = r.ToJSON(snap)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// History sends request to get up to limit persisted snapshots of a channel
func (c *ApiClient) History(channel, limit int) ([]*state.Record, error) {
	r, err := req.Get(c.historyUrl(channel), req.QueryParam{"limit": limit})
	if err != nil {
		return nil, err
	}
	if err = checkStatus(r); err != nil {
		return nil, err
	}
	var records []*state.Record
	err = r.ToJSON(&records)
	if err != nil {
		return nil, err
	}
	return records, nil
}
