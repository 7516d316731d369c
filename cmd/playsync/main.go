// Copyright 2025 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/livekit/playsync/pkg/config"
	"github.com/livekit/playsync/pkg/datastore"
	"github.com/livekit/playsync/pkg/logging"
	"github.com/livekit/playsync/pkg/session"
	"github.com/livekit/playsync/pkg/viewer"
	"github.com/livekit/protocol/logger"
)

func main() {
	cmd := &cli.Command{
		Name:        "playsync",
		Usage:       "synchronized media playback for annotation",
		Description: "runs a session of simulated viewers driven by commands read from stdin",
		Commands: []*cli.Command{
			{
				Name:   "commands",
				Usage:  "lists the commands understood on stdin",
				Action: listCommands,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "playsync yaml config file",
				Sources: cli.EnvVars("PLAYSYNC_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "config-body",
				Usage:   "playsync yaml config body",
				Sources: cli.EnvVars("PLAYSYNC_CONFIG_BODY"),
			},
		},
		Action: runSession,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func listCommands(_ context.Context, _ *cli.Command) error {
	fmt.Println(strings.Join(session.Commands, "\n"))
	return nil
}

func runSession(ctx context.Context, c *cli.Command) error {
	configBody := c.String("config-body")
	if configBody == "" {
		if configFile := c.String("config"); configFile != "" {
			content, err := os.ReadFile(configFile)
			if err != nil {
				return err
			}
			configBody = string(content)
		}
	}

	conf, err := config.NewConfig(configBody)
	if err != nil {
		return err
	}
	if err = conf.InitLogger(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := datastore.NewMemory(conf.Session.Variables...)
	s, err := session.New(conf, store,
		session.WithRegisterer(reg),
		session.WithUserLog(logging.NewConsoleLog(os.Stderr)),
	)
	if err != nil {
		return err
	}

	for _, vc := range conf.Session.Viewers {
		v := viewer.NewSimViewer(vc.Name, vc.Duration.Milliseconds(), vc.FrameRate, viewer.WithDrift(vc.Drift))
		if _, err = s.AddViewer(v, vc.Offset.Milliseconds()); err != nil {
			_ = s.Close()
			return err
		}
	}

	if conf.PrometheusPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/debug/pprof/", &profileHandler{})
		mux.Handle("/", &statusHandler{s: s})

		promListener, err := net.Listen("tcp", fmt.Sprintf(":%d", conf.PrometheusPort))
		if err != nil {
			_ = s.Close()
			return err
		}
		go func() {
			_ = http.Serve(promListener, mux)
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		select {
		case sig := <-stopChan:
			logger.Infow("exit requested, closing session", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		readCommands(s, os.Stdin, os.Stdout)
		cancel()
	}()

	return s.Run(ctx)
}

// readCommands dispatches one command per line until quit or end of input.
func readCommands(s *session.Session, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return
		}

		cmd, err := session.ParseCommand(line)
		if err == nil {
			var res string
			if res, err = s.Dispatch(cmd); err == nil {
				_, _ = fmt.Fprintln(out, res)
				continue
			}
		}
		_, _ = fmt.Fprintf(out, "! %v\n", err)
	}
}
