package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokenlens/internal/inference"
	"github.com/samcharles93/tokenlens/internal/tokenizer"
	"github.com/samcharles93/tokenlens/internal/toy"
	"github.com/samcharles93/tokenlens/internal/trace"
)

func stepCmd() *cli.Command {
	var (
		prompt   string
		steps    int64
		mode     string
		topK     int64
		temp     float64
		topP     float64
		seed     int64
		soften   bool
		showTopK bool
	)

	return &cli.Command{
		Name:  "step",
		Usage: "Step the model one token at a time and show each choice",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "initial context text (empty is a cold start)",
				Destination: &prompt,
			},
			&cli.Int64Flag{
				Name:        "steps",
				Aliases:     []string{"n"},
				Usage:       "number of steps to run",
				Value:       20,
				Destination: &steps,
			},
			&cli.StringFlag{
				Name:        "mode",
				Usage:       "selection mode (argmax, stochastic)",
				Value:       "stochastic",
				Destination: &mode,
			},
			&cli.Int64Flag{
				Name:        "top-k",
				Aliases:     []string{"top_k"},
				Usage:       "candidates to show per step (clamped to [5, 30])",
				Value:       10,
				Destination: &topK,
			},
			&cli.Float64Flag{
				Name:        "temp",
				Aliases:     []string{"temperature"},
				Usage:       "sampling temperature",
				Value:       0.8,
				Destination: &temp,
			},
			&cli.Float64Flag{
				Name:        "top-p",
				Aliases:     []string{"top_p"},
				Usage:       "nucleus sampling parameter",
				Value:       0.95,
				Destination: &topP,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling seed (-1 = time-based)",
				Value:       -1,
				Destination: &seed,
			},
			&cli.BoolFlag{
				Name:        "soften",
				Usage:       "bias newline and end-of-sequence logits down",
				Destination: &soften,
			},
			&cli.BoolFlag{
				Name:        "show-topk",
				Usage:       "print the full candidate list each step",
				Destination: &showTopK,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyModelConfig(cmd, cfg)
			applyStepConfig(cmd, cfg, &topK, &mode, &temp, &topP, &steps, &seed)

			log := newLogger()

			lm := toy.NewLM(int(vocabSize), int(hiddenSize), modelSeed)
			stepper := inference.NewStepper(lm, tokenizer.ByteCodec{}, inference.Config{
				ContextCap: int(contextCap),
				KMin:       int(topKMin),
				KMax:       int(topKMax),
			}, log)

			if seed < 0 {
				seed = time.Now().UnixNano()
			}
			rng := rand.New(rand.NewSource(seed)).Float64

			tr := trace.New()
			text := prompt
			k := int(topK)

			for i := int64(0); i < steps; i++ {
				res, err := stepper.Step(ctx, inference.StepOptions{
					Text:              text,
					TopK:              &k,
					Mode:              &mode,
					Temperature:       &temp,
					NucleusP:          &topP,
					SoftenTerminators: &soften,
					Rand:              rng,
				})
				if err != nil {
					return fmt.Errorf("step %d: %w", i, err)
				}
				if err := tr.AppendStep(res); err != nil {
					return fmt.Errorf("trace: %w", err)
				}
				text += res.AppendText
			}

			for _, chip := range tr.Chips() {
				fmt.Printf("%3d  %-8s  p=%.4f  surprisal=%.3f\n",
					chip.Index, chip.DisplayText, chip.Prob, chip.Surprisal)
				if showTopK {
					for _, tok := range chip.TopK {
						fmt.Printf("       %-8s  p=%.4f\n", tok.DisplayText, tok.Prob)
					}
				}
			}

			if got := tr.Text(prompt); got != text {
				return fmt.Errorf("trace reconstruction diverged from stepped text")
			}
			fmt.Println("---")
			fmt.Println(text)
			return nil
		},
	}
}
