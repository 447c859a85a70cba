package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/grayscale"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and registered backends",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "grayscale %s (%s, %s/%s)\nbackends: %s\n",
				grayscale.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH,
				strings.Join(grayscale.Backends(), ", "))
		},
	}
}
