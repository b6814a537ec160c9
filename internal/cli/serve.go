package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/metrics"
	"github.com/matzehuels/stratum/pkg/server"
)

// serveCommand creates the "serve" command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		save    bool
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project over HTTP with a live event stream",
		Long: `Serve loads the project and exposes it as a JSON API under /api, a
websocket event stream at /events and Prometheus metrics at /metrics.

With --save the registry is written back to the project file on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, save, noCache)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: from config)")
	cmd.Flags().BoolVar(&save, "save", false, "write the project back on shutdown")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, save, noCache bool) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	reg, err := c.openProject(ctx)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()
	st, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New(nil)
	m.Install()

	srv := server.New(reg,
		server.WithLogger(c.Logger),
		server.WithRunner(runner),
		server.WithStore(st),
		server.WithMetrics(m),
	)
	printInfo("Serving %s on %s", StyleHighlight.Render(c.project), StyleHighlight.Render(addr))
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return err
	}
	if !save {
		return nil
	}
	// ctx is already cancelled here.
	if err := c.saveProject(context.WithoutCancel(ctx), reg); err != nil {
		return err
	}
	printSuccess("Saved %s", StyleHighlight.Render(c.project))
	return nil
}
