// Command irradiance plans and bakes diffuse irradiance cube maps.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	_ "github.com/gogpu/irradiance/backend/software"
	_ "github.com/gogpu/irradiance/backend/wgpu"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "irradiance"
	app.Usage = "generate diffuse irradiance from blended cube environments"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "plan",
			Usage: "print the levels and dispatches of one frame",
			Description: `
Record one frame against a device that executes nothing and print the
pyramid levels and every dispatch the frame would run.`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "size",
					Value: 512,
					Usage: "face size of the source environments",
				},
				cli.IntFlag{
					Name:  "sources",
					Value: 2,
					Usage: "number of source environments",
				},
				cli.Float64Flag{
					Name:  "time",
					Usage: "blend time of the frame",
				},
				cli.Float64Flag{
					Name:  "period",
					Value: 3,
					Usage: "seconds each source is blended into the next",
				},
			},
			Action: planFrame,
		},
		{
			Name:  "bake",
			Usage: "process one frame and write the irradiance cube",
			Description: `
Load the source environments, record and submit one frame at the given time,
read back the finest irradiance level and write it as a .cubeenv file.`,
			ArgsUsage: "source1.cubeenv source2.cubeenv ...",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Value: "irradiance.cubeenv",
					Usage: "output file",
				},
				cli.StringFlag{
					Name:  "backend, b",
					Usage: "device backend; empty selects the best available",
				},
				cli.Float64Flag{
					Name:  "time",
					Usage: "blend time of the frame",
				},
				cli.Float64Flag{
					Name:  "period",
					Value: 3,
					Usage: "seconds each source is blended into the next",
				},
				cli.IntFlag{
					Name:  "strip-size",
					Usage: "resample image strip sources to this face size",
				},
				cli.StringFlag{
					Name:  "compression, c",
					Value: "lz4-fast",
					Usage: "none, lz4-fast or lz4-high",
				},
			},
			Action: bake,
		},
		{
			Name:      "encode",
			Usage:     "convert a six-face image strip into a .cubeenv file",
			ArgsUsage: "strip.png|strip.tiff|strip.bmp",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Usage: "output file; defaults to the input name with a .cubeenv extension",
				},
				cli.IntFlag{
					Name:  "size",
					Usage: "resample faces to this size",
				},
				cli.StringFlag{
					Name:  "compression, c",
					Value: "lz4-high",
					Usage: "none, lz4-fast or lz4-high",
				},
			},
			Action: encodeStrip,
		},
		{
			Name:  "backends",
			Usage: "list registered device backends",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "open",
					Usage: "open each backend and report the device",
				},
			},
			Action: listBackends,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "irradiance: %v\n", err)
		os.Exit(1)
	}
}
