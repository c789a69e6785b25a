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

package pin

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-encoder/pkg/command"
	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/srv"
)

const (
	ChannelOptionName       = "channel"
	ResetOptionName         = "reset"
	IndexEnableOptionName   = "index-enable"
	PositionScaleOptionName = "position-scale"
	X4ModeOptionName        = "x4-mode"
	HistoryOptionName       = "history"
	AllChannels             = -1
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Read/write encoder pins of a running control loop",
	}
	cmd.AddCommand(NewReadCommand())
	cmd.AddCommand(NewWriteCommand())
	return cmd
}

func printSnapshot(out io.Writer, s *encoder.ChannelSnapshot) {
	fmt.Fprintf(out, "%d: counts=%d raw_counts=%d position=%g velocity=%g velocity_rpm=%g "+
		"index_pulse=%t index_enable=%t reset=%t overflow_occurred=%t position_scale=%g x4_mode=%t\n",
		s.Channel, s.Counts, s.RawCounts, s.Position, s.Velocity, s.VelocityRPM,
		s.IndexPulse, s.IndexEnable, s.Reset, s.OverflowOccurred, s.PositionScale, s.X4Mode)
}

func NewReadCommand() *cobra.Command {
	var channel, history int
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read output pins of channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			out := cmd.OutOrStdout()
			if history > 0 {
				if channel == AllChannels {
					return fmt.Errorf("--%s requires --%s", HistoryOptionName, ChannelOptionName)
				}
				records, err := apiClient.History(channel, history)
				if err != nil {
					return err
				}
				for _, r := range records {
					fmt.Fprintf(out, "cycle %d ", r.Cycle)
					printSnapshot(out, &r.ChannelSnapshot)
				}
				return nil
			}
			if channel != AllChannels {
				snap, err := apiClient.Channel(channel)
				if err != nil {
					return err
				}
				printSnapshot(out, snap)
				return nil
			}
			snaps, err := apiClient.Channels()
			if err != nil {
				return err
			}
			for i := range snaps {
				printSnapshot(out, &snaps[i])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&channel, ChannelOptionName, AllChannels, "Channel number, all channels if not set")
	cmd.Flags().IntVar(&history, HistoryOptionName, 0, "Number of persisted snapshots to read")

	return cmd
}

func NewWriteCommand() *cobra.Command {
	var channel int
	var reset, indexEnable, x4Mode bool
	var positionScale float64
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write input pins of a channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			pins := &srv.PinWrite{}
			flags := cmd.Flags()
			if flags.Changed(ResetOptionName) {
				pins.Reset = &reset
			}
			if flags.Changed(IndexEnableOptionName) {
				pins.IndexEnable = &indexEnable
			}
			if flags.Changed(PositionScaleOptionName) {
				pins.PositionScale = &positionScale
			}
			if flags.Changed(X4ModeOptionName) {
				pins.X4Mode = &x4Mode
			}
			apiClient := command.NewApiClient(cfg)
			snap, err := apiClient.Write(channel, pins)
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().IntVar(&channel, ChannelOptionName, 0, "Channel number")
	cmd.MarkFlagRequired(ChannelOptionName)
	cmd.Flags().BoolVar(&reset, ResetOptionName, false, "Zero the counts of the channel")
	cmd.Flags().BoolVar(&indexEnable, IndexEnableOptionName, false, "Zero the counts on the next index pulse")
	cmd.Flags().Float64Var(&positionScale, PositionScaleOptionName, config.DefaultPositionScale, "Counts per position unit")
	cmd.Flags().BoolVar(&x4Mode, X4ModeOptionName, true, "Count every quadrature edge")

	return cmd
}
