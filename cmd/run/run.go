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

package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-encoder/pkg/command"
	"jinr.ru/greenlab/go-encoder/pkg/config"
)

const (
	PeriodOptionName    = "period-ns"
	PortOptionName      = "port"
	CPUOptionName       = "cpu"
	NoPersistOptionName = "no-persist"
)

// NewCommand creates the command running the control loop and the pin API
func NewCommand() *cobra.Command {
	var periodNs int64
	var port, cpu int
	var noPersist bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run encoder control loop against a simulated board",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed(PeriodOptionName) {
				cfg.PeriodNs = periodNs
			}
			if cmd.Flags().Changed(PortOptionName) {
				cfg.ApiPort = port
			}
			if cmd.Flags().Changed(CPUOptionName) {
				cfg.CPU = cpu
			}
			if noPersist {
				cfg.DBPath = ""
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return command.StartEncoderServer(ctx, cfg)
		},
	}
	cmd.Flags().Int64Var(&periodNs, PeriodOptionName, config.DefaultPeriodNs, "Control loop period in nanoseconds")
	cmd.Flags().IntVar(&port, PortOptionName, config.DefaultApiPort, "API port")
	cmd.Flags().IntVar(&cpu, CPUOptionName, config.NoCPU, fmt.Sprintf("CPU to pin the control loop to, %d to disable", config.NoCPU))
	cmd.Flags().BoolVar(&noPersist, NoPersistOptionName, false, "Do not persist snapshots")

	return cmd
}
