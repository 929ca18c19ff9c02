package inference

import (
	"fmt"
	"time"

	"github.com/samcharles93/tokenlens/internal/logits"
)

// Default policy values. All of them are configuration, not identity: the
// stepper never assumes a particular model or vocabulary.
const (
	DefaultContextCap  = 512
	DefaultTopK        = 10
	DefaultTemperature = 0.8
	DefaultNucleusP    = 0.95
	DefaultSoftPenalty = 2.0

	DefaultTempMin    = 0.2
	DefaultTempMax    = 1.5
	DefaultNucleusMin = 0.7
	DefaultNucleusMax = 1.0

	DefaultStillWorkingAfter = 2 * time.Second
	DefaultWarnAfter         = 5 * time.Second
)

// Config is the stepper policy: clamp ranges, context cap and latency
// thresholds. The zero value resolves to the documented defaults.
type Config struct {
	ContextCap int

	KMin int
	KMax int

	TempMin    float64
	TempMax    float64
	NucleusMin float64
	NucleusMax float64

	// SoftPenalty is subtracted from terminator logits when a request asks
	// for softened terminators.
	SoftPenalty float32

	// Two-tier latency thresholds around the scorer call. Neither cancels
	// the in-flight computation.
	StillWorkingAfter time.Duration
	WarnAfter         time.Duration

	// OnSlowScore, when set, receives latency notifications instead of the
	// stepper's logger. severe marks the second tier.
	OnSlowScore func(elapsed time.Duration, severe bool)
}

func (c Config) withDefaults() Config {
	if c.ContextCap <= 0 {
		c.ContextCap = DefaultContextCap
	}
	if c.KMin <= 0 {
		c.KMin = logits.DefaultKMin
	}
	if c.KMax <= 0 {
		c.KMax = logits.DefaultKMax
	}
	if c.TempMin <= 0 {
		c.TempMin = DefaultTempMin
	}
	if c.TempMax <= 0 {
		c.TempMax = DefaultTempMax
	}
	if c.NucleusMin <= 0 {
		c.NucleusMin = DefaultNucleusMin
	}
	if c.NucleusMax <= 0 {
		c.NucleusMax = DefaultNucleusMax
	}
	if c.SoftPenalty <= 0 {
		c.SoftPenalty = DefaultSoftPenalty
	}
	if c.StillWorkingAfter <= 0 {
		c.StillWorkingAfter = DefaultStillWorkingAfter
	}
	if c.WarnAfter <= 0 {
		c.WarnAfter = DefaultWarnAfter
	}
	return c
}

func (c Config) bounds() logits.Bounds {
	return logits.Bounds{KMin: c.KMin, KMax: c.KMax}
}

// StepOptions carries the raw, possibly partial request. Nil fields take
// defaults during resolution.
type StepOptions struct {
	Text              string
	TopK              *int
	Mode              *string
	Temperature       *float64
	NucleusP          *float64
	SoftenTerminators *bool

	// Rand supplies the uniform draw for stochastic selection. When nil the
	// stepper owns a fresh generator per call; tests inject scripted
	// sequences here.
	Rand func() float64
}

type stepRequest struct {
	text    string
	topK    int
	policy  logits.Policy
	soften  bool
	rand    func() float64
}

// resolveStep applies defaults and the documented clamps. Only k,
// temperature and nucleus-p are ever coerced; an unknown mode is an invalid
// request, never silently mapped.
func resolveStep(opts StepOptions, cfg Config) (stepRequest, error) {
	req := stepRequest{
		text: opts.Text,
		topK: DefaultTopK,
		policy: logits.Policy{
			Mode:        logits.ModeStochastic,
			Temperature: DefaultTemperature,
			NucleusP:    DefaultNucleusP,
		},
		rand: opts.Rand,
	}

	if opts.TopK != nil {
		req.topK = *opts.TopK
	}
	if opts.Mode != nil {
		switch logits.Mode(*opts.Mode) {
		case logits.ModeArgmax:
			req.policy.Mode = logits.ModeArgmax
		case logits.ModeStochastic:
			req.policy.Mode = logits.ModeStochastic
		default:
			return stepRequest{}, newInvalidRequest(fmt.Sprintf("mode must be %q or %q, got %q", logits.ModeArgmax, logits.ModeStochastic, *opts.Mode))
		}
	}
	if opts.Temperature != nil {
		req.policy.Temperature = *opts.Temperature
	}
	if opts.NucleusP != nil {
		req.policy.NucleusP = *opts.NucleusP
	}
	if opts.SoftenTerminators != nil {
		req.soften = *opts.SoftenTerminators
	}

	req.policy.Temperature = clamp(req.policy.Temperature, cfg.TempMin, cfg.TempMax)
	req.policy.NucleusP = clamp(req.policy.NucleusP, cfg.NucleusMin, cfg.NucleusMax)

	return req, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
