// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/z5labs/hearth/pkg/probe"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type probeOptions struct {
	insecure bool
	retries  int
	timeout  time.Duration
	watch    time.Duration
	verbose  bool
}

func newProbeCmd() *cobra.Command {
	var opts probeOptions

	cmd := &cobra.Command{
		Use:   "probe URL",
		Short: "Check the health endpoint of a running hearthd",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.NewNop()
			if opts.verbose {
				var err error
				logger, err = zap.NewDevelopment()
				if err != nil {
					return err
				}
				defer logger.Sync()
			}

			c := probe.New(
				probe.Logger(logger),
				probe.InsecureSkipVerify(opts.insecure),
				probe.Retries(opts.retries),
				probe.Timeout(opts.timeout),
			)
			return runProbe(cmd, c, args[0], opts.watch)
		},
	}
	cmd.Flags().BoolVar(&opts.insecure, "insecure", false, "skip verification of the server certificate")
	cmd.Flags().IntVar(&opts.retries, "retries", 2, "retries of a failed request")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "timeout of a single request")
	cmd.Flags().DurationVar(&opts.watch, "watch", 0, "keep probing at this interval until interrupted")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "log every request attempt to stderr")
	return cmd
}

func runProbe(cmd *cobra.Command, c *probe.Client, url string, interval time.Duration) error {
	if interval <= 0 {
		res, err := c.Check(cmd.Context(), url)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	err := c.Watch(ctx, url, interval, func(res probe.Result, err error) {
		if err != nil {
			cmd.PrintErrln(err)
			return
		}
		printResult(cmd, res)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printResult(cmd *cobra.Command, res probe.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s %s\n", res.StatusCode, res.Status, res.Latency.Round(time.Millisecond))
}
