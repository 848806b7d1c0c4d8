package cli

import (
	"context"
	"time"

	"github.com/ariel-frischer/appgen/internal/api"
	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/ariel-frischer/appgen/internal/lifecycle"
	"github.com/ariel-frischer/appgen/internal/runner"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow HTTP API",
	Long: `Start the HTTP API for submitting and inspecting workflows:

  POST /api/v1/workflows            start a workflow (202 with the execution id)
  GET  /api/v1/workflows            list executions
  GET  /api/v1/workflows/:id        status query
  GET  /api/v1/workflows/:id/events server-sent progress events
  GET  /api/v1/stages               stage layout
  GET  /healthz                     liveness

With redis.enabled, every event is also published to Redis pub/sub on
"<channel_prefix>:<execution-id>" and "<channel_prefix>:all".

On SIGINT or SIGTERM the server stops accepting requests and waits for
running workflows before exiting.`,
	Example: `  appgen serve
  appgen serve --addr 127.0.0.1:9090
  APPGEN_REDIS__ENABLED=true appgen serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := a.cfg.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		return lifecycle.Run(a.notifier, "serve", func() error {
			return serve(cmd.Context(), a, addr)
		})
	},
}

func init() {
	serveCmd.GroupID = GroupWorkflow
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from http.addr)")
}

func serve(ctx context.Context, a *app, addr string) error {
	var extra []runner.Option
	if a.cfg.Redis.Enabled {
		pub := events.NewRedisPublisher(events.RedisOptions{
			Addr:          a.cfg.Redis.Addr,
			Password:      a.cfg.Redis.Password,
			DB:            a.cfg.Redis.DB,
			ChannelPrefix: a.cfg.Redis.ChannelPrefix,
		})
		a.own(pub)
		extra = append(extra, runner.WithReporter(pub))
		a.logger.Printf("[serve] publishing events to redis %s (prefix %s)", a.cfg.Redis.Addr, a.cfg.Redis.ChannelPrefix)
	}

	m, err := a.manager(extra...)
	if err != nil {
		return err
	}

	srv := api.NewServer(addr, api.NewRouter(m, a.logger), a.logger)
	serveErr := srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), api.DefaultShutdownTimeout+a.cfg.StageTimeout)
	defer cancel()
	start := time.Now()
	if err := m.Shutdown(shutdownCtx); err != nil {
		a.logger.Printf("[serve] running workflows cancelled after %s: %v", time.Since(start).Round(time.Millisecond), err)
	}

	if serveErr != nil {
		return cerrors.ServerStartFailed(addr, serveErr)
	}
	return nil
}
