package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ncobase/runpod/concurrency/worker"
	"github.com/ncobase/runpod/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve executions and model listings over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			sc := a.conf.Server
			pool, err := worker.NewPool(&worker.Config{
				MaxWorkers:  sc.MaxInvocations,
				QueueSize:   sc.QueueSize,
				TaskTimeout: sc.InvocationTimeout,
			})
			if err != nil {
				return err
			}
			pool.Start()

			srv, err := server.NewServer(a.conf, a.coord, pool, a.log, server.WithMetrics(a.metrics), server.WithTransport(a.requester))
			if err != nil {
				pool.Stop(context.Background())
				return err
			}

			a.watch(ctx)
			return srv.Serve(ctx)
		},
	}
}
