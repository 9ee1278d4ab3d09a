package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/internal/monitoring"
	"github.com/twpayne/go-voxelize/pipeline"
	"github.com/twpayne/go-voxelize/terrain"
	"github.com/twpayne/go-voxelize/world"
)

func run() (err error) {
	configPath := flag.String("config", "voxelize.hujson", "config file")
	featuresPath := flag.String("features", "-", "feature repository JSON file, - for stdin")
	worldPath := flag.String("world", "world.db", "world database")
	euDEM := flag.String("eu_dem-path", os.Getenv("EU_DEM_PATH"), "path to EU DEM data, flat terrain if empty")
	quiet := flag.Bool("quiet", false, "disable logging")
	flag.Parse()

	if flag.NArg() != 0 {
		return errors.New("syntax: voxelize [flags]")
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	config, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	repository, err := loadRepository(*featuresPath)
	if err != nil {
		return err
	}

	converter, err := config.NewConverter()
	if err != nil {
		return err
	}

	heightSource := world.Flat(config.GetSeaLevel())
	if *euDEM != "" {
		elevations, err := terrain.NewEUDEMElevationService(os.DirFS(*euDEM))
		if err != nil {
			return err
		}
		heightSource = terrain.NewGridHeightSource(converter, elevations, config.GridHeightSourceOptions()...)
	}

	store, err := world.NewChunkStore(ctx, *worldPath,
		world.WithChunkCacheSize(config.GetChunkCacheSize()),
		world.WithHeightSource(heightSource),
	)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	options := []pipeline.Option{
		pipeline.WithRendererOptions(config.RendererOptions()...),
		pipeline.WithPlacerOptions(config.PlacerOptions()...),
	}
	if augmenter := config.StoryAugmenter(); augmenter != nil {
		options = append(options, pipeline.WithStoryAugmenter(augmenter))
	}
	report, err := pipeline.Run(ctx, repository, converter, store, options...)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		*pipeline.Report
		SaveID string `json:"save_id"`
	}{
		Report: report,
		SaveID: store.LastSaveID().String(),
	})
}

func loadRepository(path string) (*feature.Repository, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		r = file
	}
	return feature.LoadRepository(r)
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
