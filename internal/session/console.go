package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/calmacil/vitalsim/api/schemas"
	"github.com/calmacil/vitalsim/internal/store"
)

// Console is the instructor's interactive shell. Each line is one command;
// unknown input prints usage and keeps the shell alive, so a typo cannot
// take a live session down.
type Console struct {
	runner *Runner
	in     io.Reader
	out    io.Writer
}

func NewConsole(runner *Runner, in io.Reader, out io.Writer) *Console {
	return &Console{runner: runner, in: in, out: out}
}

// Run reads commands until EOF, "exit", or context cancellation.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "vitalsim > ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		c.execute(line)
	}
}

func (c *Console) execute(line string) {
	eng := c.runner.Engine()
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "start":
		eng.Start()
	case "pause":
		eng.Pause()
	case "stop":
		eng.Stop()
	case "status":
		c.printStatus()
	case "log":
		c.printLog()
	case "apply":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: apply <intervention-key>")
			return
		}
		eng.ApplyIntervention(args[0])
	case "vital":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: vital <field> <value>")
			return
		}
		if err := eng.ManualUpdateVital(args[0], args[1]); err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
	case "arrest":
		eng.TriggerArrest()
	case "rosc":
		eng.TriggerROSC()
	case "improve":
		eng.Improve()
	case "deteriorate":
		eng.Deteriorate()
	case "cycle":
		eng.NextCycle()
	case "queue":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: queue <rhythm>")
			return
		}
		if err := eng.QueueRhythm(schemas.Rhythm(args[0])); err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
	case "rhythm":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: rhythm <rhythm>")
			return
		}
		if err := eng.SetRhythm(schemas.Rhythm(args[0])); err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
	case "reveal":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: reveal <ecg|xray|ultrasound|vbg|ct|urine>")
			return
		}
		eng.RevealInvestigation(schemas.Investigation(args[0]))
	case "ff":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: ff <seconds>")
			return
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintln(c.out, "error: ff takes a positive number of seconds")
			return
		}
		eng.FastForward(n)
	case "mute":
		if c.runner.beeper != nil {
			c.runner.beeper.SetMuted(true)
		}
	case "unmute":
		if c.runner.beeper != nil {
			c.runner.beeper.SetMuted(false)
		}
	case "help":
		c.printHelp()
	default:
		fmt.Fprintf(c.out, "unknown command %q, try 'help'\n", cmd)
	}
}

func (c *Console) printStatus() {
	s := c.runner.Store().State()
	if !s.Loaded {
		fmt.Fprintln(c.out, "no scenario loaded")
		return
	}
	title := s.ObservedTitle
	if s.Scenario != nil {
		title = s.Scenario.Title
	}
	phase := "paused"
	switch {
	case s.Finished:
		phase = "finished"
	case s.Running:
		phase = "running"
	}
	fmt.Fprintf(c.out, "%s [%s] t=%s cycle=%s\n", title, phase,
		store.FormatSimTime(s.SimTime), store.FormatSimTime(s.CycleRemaining))
	fmt.Fprintf(c.out, "  rhythm: %s  HR %d  BP %d/%d  RR %d  SpO2 %d%%  GCS %d  T %.1f\n",
		s.Rhythm.Label(), s.Vitals.HR, s.Vitals.BPSys, s.Vitals.BPDia,
		s.Vitals.RR, s.Vitals.SpO2, s.Vitals.GCS, s.Vitals.Temp)
	if s.CPRInProgress {
		fmt.Fprintln(c.out, "  CPR in progress")
	}
	if len(s.ActiveInterventions) > 0 {
		keys := make([]string, 0, len(s.ActiveInterventions))
		for k := range s.ActiveInterventions {
			keys = append(keys, k)
		}
		fmt.Fprintf(c.out, "  active: %s\n", strings.Join(keys, ", "))
	}
}

func (c *Console) printLog() {
	s := c.runner.Store().State()
	window := s.Log
	if len(window) > 15 {
		window = window[len(window)-15:]
	}
	for _, e := range window {
		fmt.Fprintf(c.out, "[%s] %-13s %s\n", store.FormatSimTime(e.SimTime), e.Category, e.Message)
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `commands:
  start | pause | stop        control the simulation clocks
  status                      current vitals and rhythm
  log                         recent clinical log entries
  apply <key>                 perform an intervention (e.g. apply oxygen)
  vital <field> <value>       set a vital directly (e.g. vital hr 120)
  rhythm <tag>                switch rhythm immediately
  queue <tag>                 stage rhythm for the next check or shock
  arrest | rosc               force arrest / restore circulation
  improve | deteriorate       merge the scenario evolution bundles
  cycle                       skip a full CPR cycle
  ff <seconds>                fast-forward the clock
  reveal <investigation>      order an investigation
  mute | unmute               toggle the pulse beep
  exit
`)
}
