/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crrow/tweetfeed-go/pkg/feedproto"
	"github.com/crrow/tweetfeed-go/pkg/feedserver"
)

var serveDemo bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a stub streaming endpoint",
	Long: `Serve accepts subscribe requests and streams published statuses to every
subscriber whose track terms match. With --demo, the statuses listed under
server.statuses (or a default one) are published on server.interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := feedserver.Start(cfg.Server.Addr,
			feedserver.WithLogger(logger),
			feedserver.WithKeepAlive(cfg.Server.KeepAlive),
		)
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		defer func() { _ = srv.Close() }()
		fmt.Fprintf(cmd.OutOrStdout(), "tweetfeed listening on %s\n", srv.Addr())

		if serveDemo {
			go publishDemo(ctx, srv, cfg.Server.Statuses, cfg.Server.Interval)
		}

		<-ctx.Done()
		return srv.Close()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveDemo, "demo", false, "Publish canned statuses on an interval")
}

func publishDemo(ctx context.Context, srv *feedserver.Server, texts []string, every time.Duration) {
	if len(texts) == 0 {
		texts = []string{"Some Text"}
	}
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		st := feedproto.Status{
			ID:   fmt.Sprint(seq + 1),
			Text: texts[seq%len(texts)],
			User: feedproto.User{ScreenName: "Ryan Levick"},
		}
		n, err := srv.Publish(st)
		if err != nil {
			return
		}
		logger.Debug().Str("id", st.ID).Int("subscribers", n).Log("published")
	}
}
