package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GoCodeAlone/ioc"
	"github.com/GoCodeAlone/ioc/config"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/spf13/cobra"
)

type runOptions struct {
	*options
	dsn    string
	once   bool
	watch  bool
	events bool
}

// NewRunCommand creates the run command
func NewRunCommand(opts *options) *cobra.Command {
	ro := &runOptions{options: opts}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the demo bean graph and keep it running",
		Long: `Run loads the configuration, builds the demo bean graph, prints the
state of every bean and waits for SIGINT or SIGTERM before closing the
context and running the shutdown routines.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), ro)
		},
	}

	cmd.Flags().StringVar(&ro.dsn, "dsn", "memory://demo", "repository data source name")
	cmd.Flags().BoolVar(&ro.once, "once", false, "close immediately after the graph is built")
	cmd.Flags().BoolVar(&ro.watch, "watch", false, "reload handoff settings when the config file changes")
	cmd.Flags().BoolVar(&ro.events, "events", false, "print container lifecycle events")

	return cmd
}

func runDemo(ctx context.Context, out, errOut io.Writer, ro *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, chain, err := loadConfig(ro.options)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel, errOut)

	if err := ioc.Init(); err != nil {
		return fmt.Errorf("startup routines: %w", err)
	}
	defer func() {
		if shutdownErr := ioc.Shutdown(); shutdownErr != nil {
			logger.Error("Shutdown routines failed", "error", shutdownErr)
		}
	}()

	loop := ioc.NewEventLoop(workerLoopName, 16, logger)
	loop.Start()
	defer loop.Stop()

	appCtx, err := newDemoContext(cfg, logger, loop, ro, out)
	if err != nil {
		return err
	}

	if ro.watch && ro.configPath != "" {
		watcher, err := config.NewWatcher(cfg, logger, configSection, chain...)
		if err != nil {
			return err
		}
		watcher.Subscribe(appCtx.ApplyConfig)
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	refreshErr := appCtx.Refresh()
	printStatus(out, appCtx)
	if refreshErr != nil {
		_ = appCtx.Close()
		return refreshErr
	}

	service, err := ioc.Bean[*Service](appCtx, "service")
	if err != nil {
		_ = appCtx.Close()
		return err
	}
	fmt.Fprintln(out, service.Describe())

	if _, err := appCtx.GetBeanAs("worker", "ExecutionContextAware"); err == nil {
		fmt.Fprintln(out, "worker tracks its execution context")
	}

	report, err := ioc.Bean[Report](appCtx, "report")
	if err != nil {
		_ = appCtx.Close()
		return err
	}
	fmt.Fprintf(out, "report dsn=%s\n", report.DSN)

	if !ro.once {
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger.Info("Bean graph running, press Ctrl+C to stop")
		<-sigCtx.Done()
	}

	return appCtx.Close()
}

func newDemoContext(cfg *config.Config, logger *slog.Logger, loop *ioc.EventLoop, ro *runOptions, out io.Writer) (*ioc.ApplicationContext, error) {
	types := ioc.NewTypeRegistry()
	if err := registerDemoTypes(types); err != nil {
		return nil, err
	}
	plugins := ioc.NewStaticPluginLoader()
	registerDemoPlugins(plugins)

	opts := []ioc.ContextOption{
		ioc.WithConfig(cfg),
		ioc.WithExecutionContext(loop),
		ioc.WithPluginLoader(plugins),
		ioc.WithDefinitions(demoDefinitions(ro.dsn)),
	}
	if ro.events {
		printer := ioc.NewFunctionalObserver("event-printer", func(_ context.Context, event cloudevents.Event) error {
			fmt.Fprintf(out, "event %s %s\n", event.Type(), string(event.Data()))
			return nil
		})
		opts = append(opts, ioc.WithSynchronousObservers(), ioc.WithObserver(printer))
	}
	return ioc.NewApplicationContext(types, logger, opts...)
}

func printStatus(out io.Writer, appCtx *ioc.ApplicationContext) {
	for _, name := range appCtx.BeanNames() {
		status, _ := appCtx.Status(name)
		line := fmt.Sprintf("%-12s %-18s %s", name, status.State, status.EffectiveType)
		if status.Err != nil {
			line += fmt.Sprintf(" (%v)", status.Err)
		}
		fmt.Fprintln(out, line)
	}
}
