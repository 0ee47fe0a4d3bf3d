package main

import (
	"errors"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	logger := newLogger("chunkforge")
	app := &cli.App{
		Name:  "chunkforge",
		Usage: "generates chunks through the staged pipeline and stores them as Anvil regions",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "generate every chunk in a square around the center to the target status",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
					&cli.Int64Flag{Name: "seed", Usage: "world seed"},
					&cli.IntFlag{Name: "radius", Aliases: []string{"r"}, Usage: "chunk radius around the center"},
					&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Usage: "target status, e.g. features or full"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "region directory"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "worker goroutines (0 uses GOMAXPROCS)"},
					&cli.StringFlag{Name: "index", Usage: "status index database"},
					&cli.StringFlag{Name: "compression", Usage: "zlib, deflate, gzip or none"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := LoadConfig(c.String("config"))
					if err != nil {
						return err
					}
					applyFlags(c, &cfg)
					cfg.Normalize()
					if err := cfg.Validate(); err != nil {
						return err
					}
					_, err = generate(c.Context, cfg, logger)
					return err
				},
			},
			{
				Name:      "inspect",
				Usage:     "summarize the chunks stored in a region directory",
				ArgsUsage: "<region dir>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("need a region directory to inspect")
					}
					cfg, err := LoadConfig(c.String("config"))
					if err != nil {
						return err
					}
					res, err := inspect(cfg, c.Args().Get(0), logger)
					if err != nil {
						return err
					}
					res.Print(logger)
					return nil
				},
			},
			{
				Name:      "export-slime",
				Usage:     "write the full chunks of a region directory to a Slime world",
				ArgsUsage: "<region dir> <slime file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return errors.New("need a region directory and an output file")
					}
					cfg, err := LoadConfig(c.String("config"))
					if err != nil {
						return err
					}
					_, err = exportSlime(cfg, c.Args().Get(0), c.Args().Get(1), logger)
					return err
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// applyFlags overrides config values with the flags that were set.
func applyFlags(c *cli.Context, cfg *Config) {
	if c.IsSet("seed") {
		cfg.Seed = c.Int64("seed")
	}
	if c.IsSet("radius") {
		cfg.Radius = c.Int("radius")
	}
	if c.IsSet("target") {
		cfg.TargetStatus = c.String("target")
	}
	if c.IsSet("out") {
		cfg.OutputDir = c.String("out")
		// the index follows the region directory unless given explicitly
		if !c.IsSet("index") {
			cfg.IndexPath = ""
		}
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("index") {
		cfg.IndexPath = c.String("index")
	}
	if c.IsSet("compression") {
		cfg.Compression = c.String("compression")
	}
}
