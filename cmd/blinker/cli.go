package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/blinker/internal/board"
	"github.com/sweeney/blinker/internal/command"
	"github.com/sweeney/blinker/internal/driver"
)

// blinkFlags mirrors command.Request with CLI-friendly types.
type blinkFlags struct {
	mode   string
	period time.Duration
	on     time.Duration
	off    time.Duration
	duty   float64
	hz     float64
	total  time.Duration
	cycles int
	steps  []string
	repeat int
	text   string
	unit   time.Duration
}

// request converts the flags to the same request MQTT and HTTP accept.
func (f blinkFlags) request() (command.Request, error) {
	steps, err := parseSteps(f.steps)
	if err != nil {
		return command.Request{}, err
	}
	mode := command.Mode(strings.ToLower(strings.TrimSpace(f.mode)))
	if !mode.Valid() {
		return command.Request{}, fmt.Errorf("%w: %q", command.ErrUnknownMode, f.mode)
	}
	return command.Request{
		Mode:     mode,
		PeriodMs: f.period.Milliseconds(),
		OnMs:     f.on.Milliseconds(),
		OffMs:    f.off.Milliseconds(),
		Duty:     f.duty,
		Hz:       f.hz,
		TotalMs:  f.total.Milliseconds(),
		Cycles:   f.cycles,
		Steps:    steps,
		Repeat:   f.repeat,
		Text:     f.text,
		UnitMs:   f.unit.Milliseconds(),
	}, nil
}

// parseSteps reads "on:100" / "off:250" entries, durations in ms.
func parseSteps(raw []string) ([]command.Step, error) {
	var steps []command.Step
	for _, s := range raw {
		state, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
		if !ok {
			return nil, fmt.Errorf("step %q: want on:<ms> or off:<ms>", s)
		}
		var on bool
		switch strings.ToLower(state) {
		case "on", "1":
			on = true
		case "off", "0":
		default:
			return nil, fmt.Errorf("step %q: state must be on or off", s)
		}
		n, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", s, err)
		}
		steps = append(steps, command.Step{On: on, Ms: n})
	}
	return steps, nil
}

func (a *app) blinkCmd() *cobra.Command {
	var f blinkFlags
	cmd := &cobra.Command{
		Use:   "blink",
		Short: "Run one sequence in the foreground and exit",
		Example: `  blinker blink --mode duty --period 1s --duty 0.3 --cycles 5
  blinker blink --mode pattern --steps on:100,off:100,on:300,off:700 --repeat 3
  blinker blink --mode morse --text "SOS HELP"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			plan, err := req.Plan()
			if err != nil {
				return err
			}

			out, _, _, err := a.openIndicator(nil)
			if err != nil {
				return err
			}
			defer out.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := driver.NewRunner(out)
			r.Yield = driver.SleepYield(a.cfg.Poll)

			a.log.Info().Str("plan", plan.String()).Dur("total", plan.Total()).Msg("blinking")
			return interrupted(r.Play(ctx, plan), a.log)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.mode, "mode", "m", string(command.ModeBlink), "sequence mode: blink, duty, timing, freq, pattern, sos or morse")
	fs.DurationVar(&f.period, "period", 500*time.Millisecond, "half period (blink) or full period (duty)")
	fs.DurationVar(&f.on, "on", 100*time.Millisecond, "on time (timing)")
	fs.DurationVar(&f.off, "off", 100*time.Millisecond, "off time (timing)")
	fs.Float64Var(&f.duty, "duty", 0.5, "duty cycle 0-1 (duty, freq)")
	fs.Float64Var(&f.hz, "hz", 1, "frequency in Hz (freq)")
	fs.DurationVar(&f.total, "total", 2*time.Second, "total run time (freq)")
	fs.IntVarP(&f.cycles, "cycles", "n", 3, "number of on/off cycles")
	fs.StringSliceVar(&f.steps, "steps", nil, "pattern steps, e.g. on:100,off:200")
	fs.IntVar(&f.repeat, "repeat", 1, "pattern repetitions (pattern, sos, morse)")
	fs.StringVar(&f.text, "text", "SOS", "text to signal (morse)")
	fs.DurationVar(&f.unit, "unit", command.DefaultMorseUnit, "dot length (morse)")
	return cmd
}

// interrupted treats a signal-cancelled run as a clean exit.
func interrupted(err error, log zerolog.Logger) error {
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("interrupted")
		return nil
	}
	return err
}

// Demo timings.
const (
	demoPause       = 500 * time.Millisecond
	demoSectionGap  = 2 * time.Second
	demoRoundGap    = 3 * time.Second
	demoMorseUnit   = 100 * time.Millisecond
	demoFreqTotal   = 2 * time.Second
	demoFreqDuty    = 0.3
	demoDutyPeriod  = time.Second
	demoDutyCycles  = 2
	demoMorseSample = "HELLO"
)

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	return driver.SleepYield(d)(ctx)
}

// runDemo plays one round of the demo: a duty sweep, a frequency sweep,
// Morse HELLO and SOS.
func runDemo(ctx context.Context, r *driver.Runner, sleep sleepFunc, log zerolog.Logger) error {
	log.Info().Msg("duty cycle sweep")
	for pct := 10; pct <= 90; pct += 20 {
		log.Info().Int("duty_pct", pct).Msg("duty cycle")
		if err := r.BlinkDuty(ctx, demoDutyPeriod, float64(pct)/100, demoDutyCycles); err != nil {
			return err
		}
		if err := sleep(ctx, demoPause); err != nil {
			return err
		}
	}
	if err := sleep(ctx, demoSectionGap); err != nil {
		return err
	}

	log.Info().Msg("frequency sweep")
	for hz := 1; hz <= 9; hz += 2 {
		log.Info().Int("hz", hz).Msg("frequency")
		if err := r.BlinkFrequency(ctx, float64(hz), demoFreqDuty, demoFreqTotal); err != nil {
			return err
		}
		if err := sleep(ctx, demoPause); err != nil {
			return err
		}
	}
	if err := sleep(ctx, demoSectionGap); err != nil {
		return err
	}

	log.Info().Str("text", demoMorseSample).Msg("morse")
	if err := r.Morse(ctx, demoMorseSample, demoMorseUnit, 1); err != nil {
		return err
	}
	if err := sleep(ctx, demoSectionGap); err != nil {
		return err
	}

	log.Info().Msg("sos")
	return r.SOS(ctx)
}

func (a *app) demoCmd() *cobra.Command {
	var forever bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Play the built-in demonstration sequences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _, _, err := a.openIndicator(nil)
			if err != nil {
				return err
			}
			defer out.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := driver.NewRunner(out)
			r.Yield = driver.SleepYield(a.cfg.Poll)

			for {
				if err := runDemo(ctx, r, sleepCtx, a.log); err != nil {
					return interrupted(err, a.log)
				}
				if !forever {
					return nil
				}
				if err := sleepCtx(ctx, demoRoundGap); err != nil {
					return interrupted(err, a.log)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&forever, "loop", false, "repeat until interrupted")
	return cmd
}

func (a *app) boardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the built-in board profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listBoards(cmd.OutOrStdout())
		},
	}
}

func listBoards(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDRIVER\tLED\tPOLARITY\tNOTES")
	for _, name := range append([]string{board.Default.Name}, board.Names()...) {
		p, _ := board.Lookup(name)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.Driver, location(p), polarity(p), notes(p))
	}
	return tw.Flush()
}

func location(p board.Profile) string {
	switch p.Driver {
	case board.DriverGPIO:
		return fmt.Sprintf("%s:%d", p.Chip, p.Line)
	case board.DriverSysfs:
		return p.SysfsName
	}
	return "-"
}

func polarity(p board.Profile) string {
	if p.Driver != board.DriverGPIO {
		return "-"
	}
	if p.ActiveLow {
		return "low"
	}
	return "high"
}

func notes(p board.Profile) string {
	parts := []string{}
	if p.Note != "" {
		parts = append(parts, p.Note)
	}
	if p.RGB {
		parts = append(parts, "rgb")
	}
	if len(p.Aliases) > 0 {
		parts = append(parts, "aka "+strings.Join(p.Aliases, ", "))
	}
	return strings.Join(parts, "; ")
}
