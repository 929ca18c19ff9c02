package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokenlens/internal/logger"
)

var (
	vocabSize  int64
	hiddenSize int64
	modelSeed  int64
	contextCap int64
	topKMin    int64
	topKMax    int64
	logLevel   string
	logFormat  string
	debug      bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "vocab-size",
			Usage:       "vocabulary size of the built-in model",
			Value:       256,
			Destination: &vocabSize,
		},
		&cli.Int64Flag{
			Name:        "hidden-size",
			Usage:       "hidden width of the built-in model",
			Value:       16,
			Destination: &hiddenSize,
		},
		&cli.Int64Flag{
			Name:        "model-seed",
			Usage:       "seed for the built-in model weights",
			Value:       42,
			Destination: &modelSeed,
		},
		&cli.Int64Flag{
			Name:        "context-cap",
			Aliases:     []string{"ctx"},
			Usage:       "max context tokens kept (tail wins)",
			Value:       512,
			Destination: &contextCap,
		},
		&cli.Int64Flag{
			Name:        "top-k-min",
			Usage:       "lower clamp bound for top_k",
			Value:       5,
			Destination: &topKMin,
		},
		&cli.Int64Flag{
			Name:        "top-k-max",
			Usage:       "upper clamp bound for top_k",
			Value:       30,
			Destination: &topKMax,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	if logFormat == "json" {
		return logger.JSON(os.Stderr, level)
	}
	return logger.Pretty(os.Stderr, level)
}
