package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/desertthunder/catx/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the local companion server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	}

	srv := server.New(server.Opts{
		Addr:     addr,
		Sessions: r.manager,
		Albums:   r.albums,
		Logger:   r.logger,
	})

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
