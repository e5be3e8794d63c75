// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	dlvconfig "github.com/go-delve/delve/pkg/config"
	"github.com/go-delve/delve/pkg/logflags"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/config"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/history"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/mono"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/server"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/session"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/splitter"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/timer"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/version"
)

var (
	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	configPath string

	levelTimer   bool
	listenAddr   string
	liveSplitURL string
	historyPath  string
	tick         time.Duration
	historyLimit int

	// verbose is whether to log verbose info, like debug logs.
	verbose bool
)

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	rootCommand = &cobra.Command{
		Use:   "csplit",
		Short: "csplit is an auto-splitter for Celeste.",
		Long: `csplit is an auto-splitter for Celeste.

It reads the game's auto-splitter state from the running process and drives
LiveSplit One through a websocket and LiveSplit through its TCP server.`,
		SilenceUsage: true,
	}
	rootCommand.CompletionOptions.DisableDefaultCmd = true
	rootCommand.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print verbose info or enable debug logger")
	rootCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file")

	// 'run' subcommand.
	runCommand := &cobra.Command{
		Use:   "run",
		Short: "Wait for the game and split automatically.",
		Long: `Wait for the game to start, attach to it and split automatically.

The session survives game restarts. Split settings are reloaded whenever
the configuration file changes.`,
		Args: cobra.NoArgs,
		Run:  runCmd,
	}
	runCommand.Flags().BoolVar(&levelTimer, "level-timer", false, "report level time instead of file time")
	runCommand.Flags().StringVar(&listenAddr, "listen", "", "address of the HTTP server, empty to disable")
	runCommand.Flags().StringVar(&liveSplitURL, "livesplit", "", "address of the LiveSplit Server component")
	runCommand.Flags().StringVar(&historyPath, "history", "", "run history database")
	runCommand.Flags().DurationVar(&tick, "tick", 0, "update interval")
	rootCommand.AddCommand(runCommand)

	// 'inspect' subcommands.
	inspectCommand := &cobra.Command{
		Use:   "inspect",
		Short: "Print one snapshot of a game process or core dump.",
	}
	inspectCommand.AddCommand(&cobra.Command{
		Use:   "attach pid [executable]",
		Short: "Attach to a running game and print its state.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a PID")
			}
			return nil
		},
		Run: attachCmd,
	})
	inspectCommand.AddCommand(&cobra.Command{
		Use:   "core <executable> <core>",
		Short: "Print the game state stored in a core dump.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return errors.New("you must provide a core file and an executable")
			}
			return nil
		},
		Run: coreCmd,
	})
	rootCommand.AddCommand(inspectCommand)

	splitsCommand := &cobra.Command{
		Use:   "splits",
		Short: "Print the available splits and their current values.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return printSplits(cmd.OutOrStdout(), cfg.Splits.Settings())
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}
	rootCommand.AddCommand(splitsCommand)

	historyCommand := &cobra.Command{
		Use:   "history",
		Short: "Print recent runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if historyPath != "" {
				cfg.History = historyPath
			}
			store, err := history.Open(cfg.History)
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.Runs(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}
	historyCommand.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs")
	historyCommand.Flags().StringVar(&historyPath, "history", "", "run history database")
	rootCommand.AddCommand(historyCommand)

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Celeste Autosplitter\n%s\n", version.Current)
			if verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "Build Details: %s\n", version.BuildInfo())
			}
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

func setupLog() (func(), error) {
	if !verbose {
		return func() {}, nil
	}
	if err := logflags.Setup(verbose, "", ""); err != nil {
		return nil, err
	}
	return logflags.Close, nil
}

func runCmd(cmd *cobra.Command, _ []string) {
	os.Exit(execute(cmd))
}

// loadRunConfig reads the configuration and applies the run flags that
// were set explicitly.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("level-timer") {
		cfg.Splits.LevelTimer = levelTimer
	}
	if flags.Changed("listen") {
		cfg.Listen = listenAddr
	}
	if flags.Changed("livesplit") {
		cfg.LiveSplit = liveSplitURL
	}
	if flags.Changed("history") {
		cfg.History = historyPath
	}
	if flags.Changed("tick") {
		cfg.Tick = tick
	}
	return cfg, cfg.Validate()
}

func execute(cmd *cobra.Command) int {
	closeLog, err := setupLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer closeLog()

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	// network and disk timers each get their own queue so a stalled one
	// never holds up the tick
	timers := timer.Multi{timer.Log{}}
	var hub *timer.Hub
	if cfg.Listen != "" {
		hub = timer.NewHub()
		q := timer.NewQueue(hub, 0)
		defer q.Close()
		timers = append(timers, q)
	}
	if cfg.LiveSplit != "" {
		ls := timer.NewLiveSplit(cfg.LiveSplit)
		defer ls.Close()
		q := timer.NewQueue(ls, 0)
		defer q.Close()
		timers = append(timers, q)
	}
	if cfg.History != "" {
		store, err := history.Open(cfg.History)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return 1
		}
		defer store.Close()
		q := timer.NewQueue(store, 0)
		defer q.Close()
		timers = append(timers, q)
	}

	live := config.NewLive(cfg.Splits.Settings())
	attacher := session.NewLiveAttacher(cfg.Processes, &mono.DefaultLayout, cfg.AttachInterval)
	sess := session.New(attacher, timers, live)
	defer sess.Disconnect()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tickLoop(gctx, sess, cfg.Tick)
	})
	if cfg.Listen != "" {
		srv := server.New(cfg.Listen, sess, hub)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, func(c *config.Config) {
				s := c.Splits.Settings()
				if cmd.Flags().Changed("level-timer") {
					s.Values[splitter.LevelTimerID] = levelTimer
				}
				live.Set(s)
			})
		})
	}

	log.Printf("waiting for %v", cfg.Processes)
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

// tickLoop updates sess every interval until ctx is done.
func tickLoop(ctx context.Context, sess *session.Session, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	attached := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		err := sess.Update(ctx)
		switch session.Classify(err) {
		case session.ClassNone:
		case session.ClassTransient:
			logflags.DebuggerLogger().Debugf("tick: %v", err)
		default:
			logflags.DebuggerLogger().Warnf("tick: %v", err)
		}
		st := sess.Status()
		if st.Attached != attached {
			attached = st.Attached
			if attached {
				log.Printf("attached to pid %d (%s runtime)", st.Pid, st.Runtime)
			} else {
				log.Printf("detached")
			}
		}
	}
}

func attachCmd(cmd *cobra.Command, args []string) {
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid pid: %s\n", args[0])
		os.Exit(1)
	}
	var exeFile string
	if len(args) > 1 {
		exeFile = args[1]
	}
	os.Exit(inspect(cmd.OutOrStdout(), pid, exeFile, ""))
}

func coreCmd(cmd *cobra.Command, args []string) {
	os.Exit(inspect(cmd.OutOrStdout(), 0, args[0], args[1]))
}

func inspect(out io.Writer, attachPid int, exeFile, coreFile string) int {
	closeLog, err := setupLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer closeLog()

	// Config setup and load.
	conf, loadConfErr := dlvconfig.LoadConfig()
	var debugInfoDirs []string
	if loadConfErr != nil {
		logflags.DebuggerLogger().Errorf("%v", loadConfErr)
	} else {
		debugInfoDirs = conf.DebugInfoDirectories
	}

	target, err := proc.OpenDelve(attachPid, exeFile, coreFile, debugInfoDirs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	att, err := session.Open(context.Background(), target, &mono.DefaultLayout)
	if err != nil {
		_ = target.Close()
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	defer func() {
		if err := att.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "detach failed: %v\n", err)
		}
	}()

	snap, err := att.Reader.Read()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	fmt.Fprintf(out, "# %s runtime\n", att.Reader.Kind())
	if err := yaml.NewEncoder(out).Encode(&snap); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

func printSplits(out io.Writer, s splitter.Settings) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	section := ""
	for _, st := range splitter.Surface() {
		if st.Section != section {
			section = st.Section
			fmt.Fprintf(w, "\n[%s]\n", section)
		}
		mark := " "
		if s.Enabled(st.ID) {
			mark = "x"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", mark, st.ID, st.Label)
	}
	if len(s.Order) > 0 {
		fmt.Fprintf(w, "\norder:")
		for _, r := range s.Route() {
			fmt.Fprintf(w, " %s", r.ID)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func printRuns(out io.Writer, runs []history.Run) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range runs {
		state := "running"
		if !r.EndedAt.IsZero() {
			state = "ended"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", r.StartedAt.Local().Format(time.DateTime), r.ID, state, r.GameTime)
		for _, sp := range r.Splits {
			fmt.Fprintf(w, "\t%d\t%s\t%v\n", sp.Seq, sp.Rule, sp.GameTime)
		}
	}
	return w.Flush()
}
