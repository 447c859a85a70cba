package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gogpu/grayscale/gpu"
	"github.com/gogpu/grayscale/internal/config"
)

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List compute platforms and adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			devices, err := gpu.Devices(cfg.Platforms, cfg.AllowSoftware)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(a.stdout, "no compute platform available")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLATFORM\tNAME\tTYPE\tDRIVER\tGPU CLASS")
			for _, d := range devices {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", d.Platform, d.Name, d.Type, d.Driver, d.GPUClass)
			}
			return tw.Flush()
		},
	}
}
