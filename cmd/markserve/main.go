package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matthewmueller/markserve"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	config, err := markserve.LoadConfig(args, os.Getenv)
	if err != nil {
		return err
	}
	log, err := markserve.NewLogger(config)
	if err != nil {
		return err
	}
	server, err := markserve.New(log, config)
	if err != nil {
		return err
	}
	defer server.Close()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return server.Watch(ctx)
	})
	eg.Go(func() error {
		return server.ListenAndServe(ctx)
	})
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("markserve: server stopped", "error", err)
		return err
	}
	return nil
}
