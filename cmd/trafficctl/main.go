// Package main is the trafficctl command, a local front end to the analysis pipelines and observation log.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/jengzang/traffic-density-go/internal/config"
	"github.com/jengzang/traffic-density-go/internal/logging"
)

const (
	flagLog       = "log"
	flagDebug     = "debug"
	flagLocation  = "location"
	flagFrameSkip = "frame-skip"
	flagLabels    = "labels"
	flagLimit     = "limit"
	flagSubject   = "subject"
	flagTTL       = "ttl"
	flagSecret    = "secret"
)

func main() {
	if err := newApp(config.Load()).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) *cli.App {
	cmd := &commands{cfg: cfg, logger: zap.NewNop().Sugar()}

	locationFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    flagLocation,
			Aliases: []string{"l"},
			Usage:   "location recorded with the observation",
			Value:   cfg.DefaultLocation,
		}
	}
	labelsFlag := func() cli.Flag {
		return &cli.StringSliceFlag{
			Name:  flagLabels,
			Usage: "skip the detector and report these labels for every frame",
		}
	}

	return &cli.App{
		Name:  "trafficctl",
		Usage: "count vehicles and inspect the traffic observation log",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagLog,
				Usage: "observation log `FILE`",
				Value: cfg.ObservationLogPath,
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger, err := logging.New("trafficctl", "debug", true)
				if err != nil {
					return err
				}
				cmd.logger = logger
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "image",
				Usage:     "analyse one image and append its observation",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{locationFlag(), labelsFlag()},
				Action:    cmd.image,
			},
			{
				Name:      "video",
				Usage:     "analyse a video and append one summary observation",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					locationFlag(),
					labelsFlag(),
					&cli.IntFlag{
						Name:  flagFrameSkip,
						Usage: "sample every Nth frame",
						Value: cfg.FrameSkip,
					},
				},
				Action: cmd.video,
			},
			{
				Name:  "history",
				Usage: "print logged observations",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagLocation, Aliases: []string{"l"}, Usage: "only this location"},
					&cli.IntFlag{Name: flagLimit, Usage: "newest N rows", Value: 20},
				},
				Action: cmd.history,
			},
			{
				Name:  "peak",
				Usage: "print the observations with the highest vehicle total",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagLocation, Aliases: []string{"l"}, Usage: "only this location"},
				},
				Action: cmd.peak,
			},
			{
				Name:  "token",
				Usage: "issue an API token signed with JWT_SECRET",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagSubject, Value: "operator", Usage: "token subject"},
					&cli.DurationFlag{Name: flagTTL, Value: 24 * time.Hour, Usage: "token lifetime"},
					&cli.StringFlag{Name: flagSecret, Value: cfg.JWTSecret, Usage: "signing secret"},
				},
				Action: cmd.token,
			},
		},
	}
}
