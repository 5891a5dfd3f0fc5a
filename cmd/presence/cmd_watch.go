package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"presence/internal/app"
	"presence/pkg/projector"
	"presence/pkg/statusync"
)

type watchFlags struct {
	json   bool
	listen string
}

// newWatchCmd creates the "presence watch" subcommand.
func newWatchCmd(g *globalFlags) *cobra.Command {
	f := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live status feed",
		Long: "Streams status updates until interrupted. Output is text on a terminal\n" +
			"and JSON lines otherwise. With --listen, the latest view is also served\n" +
			"read-only over HTTP (/view, /state, /healthz).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := g.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // best-effort cache close on exit

			return runWatch(ctx, a, newPrinter(cmd.OutOrStdout(), f.json), f.listen)
		},
	}

	cmd.Flags().BoolVar(&f.json, "json", false, "force JSON lines output")
	cmd.Flags().StringVar(&f.listen, "listen", "", "serve the latest view on this address, e.g. 127.0.0.1:7070")
	return cmd
}

// runWatch runs the sync client, and the view server when listen is set,
// until ctx is done.
func runWatch(ctx context.Context, a *app.App, out *printer, listen string) error {
	store := &viewStore{}
	client, err := a.Sync(app.Hooks{
		OnFrame: func(f projector.Frame) {
			store.setFrame(f)
			out.frame(f)
		},
		OnState: func(c statusync.StateChange) {
			store.setState(c)
			out.state(c)
		},
	})
	if err != nil {
		return err
	}

	var ln net.Listener
	if listen != "" {
		ln, err = net.Listen("tcp", listen)
		if err != nil {
			return fmt.Errorf("listen %s: %w", listen, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		client.Start(gctx)
		<-gctx.Done()
		client.Stop()
		return nil
	})

	if ln != nil {
		srv := &http.Server{
			Handler:           newViewRouter(store, a.Logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		a.Logger.Info("view server listening", "addr", ln.Addr().String())

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("view server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
