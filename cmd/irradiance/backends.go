package main

import (
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/gogpu/irradiance/backend"
)

// List the registered backends, optionally opening each one.
func listBackends(ctx *cli.Context) error {
	setupLogging(ctx)
	writeBackends(os.Stdout, ctx.Bool("open"))
	return nil
}

func writeBackends(w io.Writer, open bool) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Backend", "Status"})
	for _, name := range backend.Available() {
		status := "registered"
		if open {
			dev, err := backend.Get(name)
			if err != nil {
				status = err.Error()
			} else {
				status = "ok: " + dev.Name()
				dev.Close()
			}
		}
		table.Append([]string{name, status})
	}
	table.Render()
}
