package main

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/jengzang/traffic-density-go/internal/analysis"
	"github.com/jengzang/traffic-density-go/internal/config"
	"github.com/jengzang/traffic-density-go/internal/detector"
	"github.com/jengzang/traffic-density-go/internal/middleware"
	"github.com/jengzang/traffic-density-go/internal/models"
	"github.com/jengzang/traffic-density-go/internal/repository"
	"github.com/jengzang/traffic-density-go/internal/service"
)

type commands struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func (cmd *commands) observations(c *cli.Context) *repository.ObservationRepository {
	return repository.NewObservationRepository(c.String(flagLog), cmd.logger)
}

// analysisService runs without a run ledger or event publisher.
// The returned func stops the detector process, if one was started.
func (cmd *commands) analysisService(c *cli.Context) (*service.AnalysisService, func(), error) {
	var det detector.Detector
	release := func() {}
	if labels := c.StringSlice(flagLabels); len(labels) > 0 {
		det = detector.Func(func(context.Context, image.Image, float64) ([]string, error) {
			return labels, nil
		})
	} else {
		python := detector.NewPythonDetector(
			cmd.cfg.DetectorPython, cmd.cfg.DetectorScript, cmd.cfg.DetectorModel, cmd.logger)
		det = python
		release = func() { _ = python.Close() }
	}

	pipeline, err := analysis.NewPipeline(analysis.Options{
		Detector:   det,
		Log:        cmd.observations(c),
		Confidence: cmd.cfg.DetectorConfidence,
		FrameSkip:  cmd.cfg.FrameSkip,
		Location:   cmd.cfg.DefaultLocation,
		Logger:     cmd.logger,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return service.NewAnalysisService(pipeline, nil, nil, cmd.logger), release, nil
}

func pathArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.Errorf("%s expects exactly one path", c.Command.Name)
	}
	return c.Args().First(), nil
}

func (cmd *commands) image(c *cli.Context) error {
	path, err := pathArg(c)
	if err != nil {
		return err
	}
	svc, release, err := cmd.analysisService(c)
	if err != nil {
		return err
	}
	defer release()

	out, err := svc.AnalyzeImage(c.Context, path, c.String(flagLocation))
	if err != nil {
		return err
	}

	r := out.Result
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Car", "Bike", "Bus", "Truck", "Total", "Density", "Pollution", "Fuel Waste"})
	t.AppendRow(table.Row{r.Car, r.Bike, r.Bus, r.Truck, r.Total, r.Density, r.Pollution, r.FuelWaste})
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

func (cmd *commands) video(c *cli.Context) error {
	path, err := pathArg(c)
	if err != nil {
		return err
	}
	svc, release, err := cmd.analysisService(c)
	if err != nil {
		return err
	}
	defer release()

	out, err := svc.AnalyzeVideo(c.Context, path, c.Int(flagFrameSkip), c.String(flagLocation))
	if err != nil {
		return err
	}

	s := out.Summary
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Sample", "Vehicles", "Pollution"})
	for i, total := range s.Totals {
		t.AppendRow(table.Row{i + 1, total, s.Timeline.Pollution[i]})
	}
	t.AppendFooter(table.Row{"Average", s.Average, s.Pollution})
	fmt.Fprintln(c.App.Writer, t.Render())

	counts := s.FinalCounts
	fmt.Fprintf(c.App.Writer, "frames %d (sampled %d)  car %d  motorcycle %d  bus %d  truck %d\n",
		s.FramesRead, s.FramesSampled,
		counts.Get(models.Car), counts.Get(models.Motorcycle), counts.Get(models.Bus), counts.Get(models.Truck))
	fmt.Fprintf(c.App.Writer, "density %s  pollution %v  fuel %v\n", s.Density, s.Pollution, s.Fuel)
	return nil
}

func (cmd *commands) history(c *cli.Context) error {
	rows, err := service.NewHistoryService(cmd.observations(c)).List(models.ObservationFilter{
		Location: c.String(flagLocation),
		Limit:    c.Int(flagLimit),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, observationTable(rows))
	return nil
}

func (cmd *commands) peak(c *cli.Context) error {
	rows, err := service.NewHistoryService(cmd.observations(c)).Peak(models.ObservationFilter{
		Location: c.String(flagLocation),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, observationTable(rows))
	return nil
}

func (cmd *commands) token(c *cli.Context) error {
	token, err := middleware.IssueToken(c.String(flagSecret), c.String(flagSubject), c.Duration(flagTTL))
	if err != nil {
		return errors.Wrap(err, "set JWT_SECRET or pass --secret")
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func observationTable(rows []models.Observation) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Date", "Time", "Location", "Car", "Bike", "Bus", "Truck", "Total", "Density", "Pollution", "Fuel Waste"})
	for _, obs := range rows {
		t.AppendRow(table.Row{
			obs.Date, obs.Time, obs.Location,
			obs.Counts.Get(models.Car), obs.Counts.Get(models.Motorcycle),
			obs.Counts.Get(models.Bus), obs.Counts.Get(models.Truck),
			strconv.FormatFloat(obs.Total, 'f', -1, 64), obs.Density,
			obs.Pollution, obs.FuelWaste,
		})
	}
	return t.Render()
}
