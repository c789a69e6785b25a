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

package decode

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/layers"
)

const (
	ChannelsOptionName = "channels"
)

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(s)
	return hex.DecodeString(s)
}

// NewCommand creates a command decoding raw encoder registers given in hex
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode encoder read/write buffers",
	}
	cmd.AddCommand(NewReadCommand())
	cmd.AddCommand(NewWriteCommand())
	return cmd
}

func NewReadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read HEX",
		Short: "Decode a read buffer (index pulse flags and counts)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseHex(args[0])
			if err != nil {
				return err
			}
			l, err := layers.DecodeReadFrame(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Channels: %d\n", l.NumChannels())
			for i := range l.Counts {
				fmt.Fprintf(out, "%d: counts=%d index_pulse=%t\n", i, l.Counts[i], l.IndexPulse[i])
			}
			return nil
		},
	}
	return cmd
}

func NewWriteCommand() *cobra.Command {
	var numChannels int
	cmd := &cobra.Command{
		Use:   "write HEX",
		Short: "Decode a write buffer (index enable and reset index pulse flags)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseHex(args[0])
			if err != nil {
				return err
			}
			if numChannels <= 0 {
				numChannels = len(data) / 2 * 8
			}
			if len(data) != encoder.WriteBufferSize(numChannels) {
				return fmt.Errorf("Write buffer of %d channels is %d bytes, got %d",
					numChannels, encoder.WriteBufferSize(numChannels), len(data))
			}
			l, err := layers.DecodeWriteFrame(data, numChannels)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i := 0; i < numChannels; i++ {
				fmt.Fprintf(out, "%d: index_enable=%t reset_index_pulse=%t\n", i, l.IndexEnable[i], l.ResetIndexPulse[i])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&numChannels, ChannelsOptionName, 0, "Number of channels, defaults to every bit of the buffer")
	return cmd
}
