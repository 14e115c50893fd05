package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/zeusync/sentry/internal/core/npc"
	"github.com/zeusync/sentry/internal/core/observability/log"
	"github.com/zeusync/sentry/internal/injector"
	"github.com/zeusync/sentry/internal/server"
	"github.com/zeusync/sentry/internal/sim"
)

type options struct {
	scenario string
	listen   string
	token    string
	trace    string
	realtime bool
	level    string
}

func main() {
	var o options
	flag.StringVar(&o.scenario, "scenario", "", "scenario YAML file (required)")
	flag.StringVar(&o.listen, "listen", "", "serve the debug feed on this address, e.g. :8080")
	flag.StringVar(&o.token, "token", "", "shared token required by feed clients")
	flag.StringVar(&o.trace, "trace", "", "write a zstd JSONL transition trace to this file")
	flag.BoolVar(&o.realtime, "realtime", false, "pace ticks in wall-clock time")
	flag.StringVar(&o.level, "log-level", "info", "debug, info, warn or error")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, o, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sentry:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer) (err error) {
	if o.scenario == "" {
		return errors.New("-scenario is required")
	}
	level, err := log.ParseLevel(o.level)
	if err != nil {
		return err
	}
	sc, err := sim.LoadScenarioFile(o.scenario)
	if err != nil {
		return err
	}

	app, err := injector.InitializeApp(level, sc)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, app.Close()) }()
	logger := app.Log.With(log.String("scenario", sc.Name))

	var trace *sim.TraceRecorder
	if o.trace != "" {
		if trace, err = sim.CreateTrace(o.trace); err != nil {
			return err
		}
		defer func() { err = errors.Join(err, trace.Close()) }()
		app.Runner.Observe(trace)
	}

	if o.listen != "" {
		hub := server.NewHub(0, logger)
		srv := server.NewHTTPServer(server.Config{ListenAddr: o.listen, Token: o.token}, hub, app.Runner, logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(sctx); err != nil {
				logger.Warn("debug feed shutdown", log.Error(err))
			}
		}()
		app.Runner.Observe(hub)
	}

	stats, err := app.Runner.Run(ctx, o.realtime)
	if err != nil {
		return err
	}

	summarize(out, sc, stats)
	if trace != nil {
		if err := trace.Close(); err != nil {
			return err
		}
		size := ""
		if fi, err := os.Stat(o.trace); err == nil {
			size = ", " + humanize.Bytes(uint64(fi.Size()))
		}
		fmt.Fprintf(out, "trace: %s (%s lines%s)\n", o.trace, humanize.Comma(int64(trace.Lines())), size)
	}
	return nil
}

func summarize(out io.Writer, sc *sim.Scenario, s sim.Stats) {
	name := sc.Name
	if name == "" {
		name = "scenario"
	}
	fmt.Fprintf(out, "%s: %s ticks, %s simulated in %s\n",
		name, humanize.Comma(int64(s.Ticks)), s.Simulated, s.Wall.Round(time.Millisecond))

	var entered []string
	for _, st := range npc.States() {
		if n := s.Entered[st]; n > 0 {
			entered = append(entered, fmt.Sprintf("%s %s", st, humanize.Comma(int64(n))))
		}
	}
	line := humanize.Comma(int64(s.Transitions))
	if len(entered) > 0 {
		line += " (" + strings.Join(entered, ", ") + ")"
	}
	fmt.Fprintf(out, "transitions: %s\n", line)
	fmt.Fprintf(out, "aggravations: %s, alerts: %s\n", humanize.Comma(int64(s.Aggravates)), humanize.Comma(int64(s.Alerts)))
	fmt.Fprintf(out, "events: %s published, slowest delivery %s\n", humanize.Comma(int64(s.Events.Published)), s.SlowestEvent)
	fmt.Fprintf(out, "strikes: %s, damage: %s, respawns: %s\n",
		humanize.Comma(int64(s.Arena.Struck)), humanize.Commaf(s.Arena.Damage), humanize.Comma(int64(s.Arena.Respawns)))
}
