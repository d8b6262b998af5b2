package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/avoncourt/steward/pkg/steward/actuate"
	"github.com/avoncourt/steward/pkg/steward/supervisor"
)

// newSimulateCmd creates the `steward simulate` command: a REPL that
// feeds typed text through the decision engine with a virtual clock.
func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Interactive decision-engine REPL",
		Long: `Run the decision engine against typed text instead of screen
captures. Each entered line becomes the current screen content and a
tick is evaluated against it. Instructions are logged, not delivered.

Commands inside the REPL:
  <text>    set the screen content and run a tick
  +<dur>    advance the virtual clock (e.g. +30s, +2m) and run a tick
  state     show the intervention state
  quit      exit

Examples:
  steward simulate`,
		RunE: runSimulate,
	}
}

// simSource replays the REPL's current text as the captured snapshot.
type simSource struct {
	text string
}

func (s *simSource) CaptureText(context.Context) (string, error) {
	return s.text, nil
}

// simGenerator produces a canned instruction so the REPL works without
// an API key.
type simGenerator struct{}

func (simGenerator) Generate(_ context.Context, _, _, kind string) (string, error) {
	return fmt.Sprintf("Simulated instruction for %s: continue with the next step.", kind), nil
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	source := &simSource{}
	sup := supervisor.New(cfg.Supervisor, supervisor.Deps{
		Source:    source,
		Generator: simGenerator{},
		Executor:  actuate.NewLogExecutor(logger),
	}, logger)

	// Virtual clock, stepped by +<dur> commands.
	now := time.Now()
	sup.SetClock(func() time.Time { return now })

	rl, err := readline.New("sim> ")
	if err != nil {
		return fmt.Errorf("starting REPL: %w", err)
	}
	defer rl.Close()

	fmt.Println("Decision-engine simulator. Type text, +30s to advance time, quit to exit.")

	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return nil
		case line == "state":
			printState(sup.State())
			continue
		case strings.HasPrefix(line, "+"):
			d, err := time.ParseDuration(line[1:])
			if err != nil {
				fmt.Printf("bad duration %q: %v\n", line, err)
				continue
			}
			now = now.Add(d)
			fmt.Printf("clock advanced by %s\n", d)
		default:
			source.text = line
			// Ticks are 1s apart on the virtual clock so stability
			// timing stays meaningful.
			now = now.Add(time.Second)
		}

		res := sup.Tick(ctx)
		printResult(res)
	}
}

func printResult(res supervisor.TickResult) {
	switch {
	case res.Paused:
		fmt.Println("  paused (repeated-content backoff)")
	case res.Failure == supervisor.FailureCapture:
		fmt.Println("  no content")
	case res.Failure == supervisor.FailureValidation:
		fmt.Println("  snapshot rejected")
	case res.Dispatched:
		forced := ""
		if res.Forced {
			forced = " (forced)"
		}
		fmt.Printf("  DISPATCH%s kind=%s reason=%q\n  instruction: %s\n",
			forced, res.Kind, res.Reason, res.Instruction)
	case res.Suppressed:
		fmt.Printf("  suppressed: %s\n", res.SuppressReason)
	default:
		fmt.Printf("  idle signal=%s busy=%v stuck=%v\n",
			res.Classification.Signal.String(),
			res.Classification.Busy,
			res.Classification.Stuck)
	}
}

func printState(st supervisor.State) {
	if st.LastInterventionAt.IsZero() {
		fmt.Println("  no interventions yet")
		return
	}
	fmt.Printf("  last intervention: %s\n", st.LastInterventionAt.Format(time.RFC3339))
	fmt.Printf("  last instruction:  %s\n", st.LastInstruction)
	fmt.Printf("  last fingerprint:  %s\n", st.LastFingerprint)
}
