package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokenlens/internal/api"
	"github.com/samcharles93/tokenlens/internal/inference"
	"github.com/samcharles93/tokenlens/internal/logger"
	"github.com/samcharles93/tokenlens/internal/tokenizer"
	"github.com/samcharles93/tokenlens/internal/toy"
)

func serveCmd() *cli.Command {
	var (
		addr          string
		readTimeout   time.Duration
		ratePerSecond float64
		rateBurst     int64
		corsOrigin    string
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the stepping API",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Float64Flag{
				Name:        "rate-limit",
				Usage:       "requests per second across all clients (0 disables)",
				Value:       0,
				Destination: &ratePerSecond,
			},
			&cli.Int64Flag{
				Name:        "rate-burst",
				Usage:       "rate limiter burst size",
				Value:       10,
				Destination: &rateBurst,
			},
			&cli.StringFlag{
				Name:        "cors-origin",
				Usage:       "allowed CORS origin for browser clients",
				Value:       "http://localhost:3001",
				Destination: &corsOrigin,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyModelConfig(cmd, cfg)
			applyServeConfig(cmd, cfg, &addr, &ratePerSecond, &corsOrigin)

			log := newLogger()
			ctx = logger.WithContext(ctx, log)

			lm := toy.NewLM(int(vocabSize), int(hiddenSize), modelSeed)
			stepper := inference.NewStepper(lm, tokenizer.ByteCodec{}, inference.Config{
				ContextCap: int(contextCap),
				KMin:       int(topKMin),
				KMax:       int(topKMax),
			}, log)
			server := api.NewServer(stepper, api.ServerConfig{
				RatePerSecond: ratePerSecond,
				RateBurst:     int(rateBurst),
			}, log)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{corsOrigin},
			}))
			server.Register(e)

			log.Info("starting server", "address", addr, "model", lm.ModelName())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
