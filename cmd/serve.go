package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/jsxsite/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Watch the site and serve it with live reload",
	Long: `Build and watch the site like "watch", and serve the output directory.
Every HTML page gets a live-reload script; browsers reload after each
successful rebuild and show an error overlay while a rebuild is failing.

Examples:
  jsxsite serve                   # Serve on localhost:8080
  jsxsite serve -p 3000           # Serve on another port
  jsxsite serve --host 0.0.0.0    # Listen on every interface`,
	RunE: runServe,
}

var (
	servePort int
	serveHost string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to serve on (default from config, 8080)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config, localhost)")
}

func runServe(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	return serveSite(cmd, sess)
}

func serveSite(cmd *cobra.Command, sess *session) error {
	cfg := sess.site.Config()
	opts := server.Options{
		Dir:  cfg.OutputDir(),
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if cmd.Flags().Changed("host") {
		opts.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		opts.Port = servePort
	}

	srv := server.New(opts, sess.logger)

	g, ctx := errgroup.WithContext(sess.ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		return watchSite(ctx, sess.site, sess.logger, srv.Notify)
	})

	err := g.Wait()
	_ = srv.Shutdown(context.Background())
	return err
}
