package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrEthical07/goSession/internal/upstreamtest"
	"github.com/spf13/cobra"
)

func newStubUpstreamCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stub-upstream",
		Short: "Run a fake backend that issues signed tokens for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStubUpstream(cmd, root)
		},
	}

	cmd.Flags().String("listen", ":8080", "Listen address")
	cmd.Flags().StringArray("user", []string{"admin@example.com:admin"}, "Account as username:password (repeatable)")
	cmd.Flags().Duration("access-ttl", 5*time.Minute, "Access token lifetime")
	cmd.Flags().Duration("refresh-ttl", 24*time.Hour, "Refresh token lifetime")
	cmd.Flags().Bool("rotate", false, "Rotate the refresh token on every refresh")

	return cmd
}

func parseStubUsers(raw []string) ([]upstreamtest.Option, error) {
	opts := make([]upstreamtest.Option, 0, len(raw))
	for _, entry := range raw {
		username, password, ok := strings.Cut(entry, ":")
		if !ok || username == "" || password == "" {
			return nil, fmt.Errorf("invalid --user %q, want username:password", entry)
		}
		opts = append(opts, upstreamtest.WithUser(username, password))
	}
	return opts, nil
}

func runStubUpstream(cmd *cobra.Command, root *rootOptions) error {
	logger, err := newLogger(cmd.ErrOrStderr(), root.logFormat, root.logLevel)
	if err != nil {
		return err
	}
	listen, _ := cmd.Flags().GetString("listen")
	users, _ := cmd.Flags().GetStringArray("user")
	accessTTL, _ := cmd.Flags().GetDuration("access-ttl")
	refreshTTL, _ := cmd.Flags().GetDuration("refresh-ttl")
	rotate, _ := cmd.Flags().GetBool("rotate")

	opts, err := parseStubUsers(users)
	if err != nil {
		return err
	}
	opts = append(opts, upstreamtest.WithAccessTTL(accessTTL), upstreamtest.WithRefreshTTL(refreshTTL))
	if rotate {
		opts = append(opts, upstreamtest.WithRotation())
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           upstreamtest.New(opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stub upstream listening", "addr", listen, "users", len(users), "rotate", rotate)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
