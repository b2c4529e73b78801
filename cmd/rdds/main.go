// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command rdds runs a node from the command line, to publish, subscribe or
// look around a domain.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/willabides/kongplete"

	_ "github.com/rdds/rdds/lib/automaxprocs"
	"github.com/rdds/rdds/lib/build"
	"github.com/rdds/rdds/lib/config"
	"github.com/rdds/rdds/lib/locations"
	"github.com/rdds/rdds/lib/logger"
	"github.com/rdds/rdds/lib/node"
)

var l = logger.DefaultLogger.NewFacility("main", "Main package")

type CLI struct {
	Config          string   `name:"config" short:"c" placeholder:"PATH" env:"RDDS_CONFIG" help:"Node configuration file (YAML, default ${configfile} if present)"`
	Name            string   `name:"name" short:"n" env:"RDDS_NAME" help:"Node name (default hostname)"`
	Domain          int      `name:"domain" short:"d" default:"-1" env:"RDDS_DOMAIN" help:"Domain ID, 0-${maxdomain}"`
	Scheduler       string   `name:"scheduler" env:"RDDS_SCHEDULER" help:"Duty scheduler (parallel or cooperative)"`
	MetricsListen   string   `name:"metrics-listen" placeholder:"ADDR" env:"RDDS_METRICS_LISTEN" help:"Serve Prometheus metrics on this address"`
	NoDefaultConfig bool     `name:"no-default-config" env:"RDDS_NO_DEFAULT_CONFIG" help:"Do not read the default configuration file"`
	Debug           []string `name:"debug" placeholder:"FACILITY" env:"RDDS_DEBUG" help:"Enable debug logging for facilities (all for everything)"`

	Version            kong.VersionFlag             `help:"Show version"`
	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`

	Pub        pubCommand        `cmd:"" help:"Publish text messages on a topic"`
	Sub        subCommand        `cmd:"" help:"Print messages received on a topic"`
	Nodes      nodesCommand      `cmd:"" help:"List the nodes and endpoints of a domain"`
	ShowConfig showConfigCommand `cmd:"" name:"show-config" help:"Print the effective configuration"`
}

// Context is bound for every command.
type Context struct {
	cfg config.NodeConfiguration
}

func (cli CLI) AfterApply(kongCtx *kong.Context) error {
	setDebug(cli.Debug)

	cfg, err := cli.configuration()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	if cfg.MetricsAddress != "" {
		go serveMetrics(cfg.MetricsAddress)
	}

	kongCtx.Bind(Context{cfg: cfg})
	return nil
}

// configuration loads the configuration file, if any, and applies the
// command line overrides on top.
func (cli CLI) configuration() (config.NodeConfiguration, error) {
	path := cli.Config
	if path == "" && !cli.NoDefaultConfig {
		path, _ = locations.DefaultConfigFile()
	}

	var cfg config.NodeConfiguration
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
		if cli.Name != "" {
			cfg.Name = cli.Name
		}
	} else {
		cfg = config.New(cli.Name)
	}

	if cli.Domain >= 0 {
		cfg.DomainID = cli.Domain
	}
	if cli.Scheduler != "" {
		cfg.Scheduler = cli.Scheduler
	}
	if cli.MetricsListen != "" {
		cfg.MetricsAddress = cli.MetricsListen
	}
	return cfg, cfg.Validate()
}

func setDebug(facilities []string) {
	for _, f := range facilities {
		f = strings.TrimSpace(f)
		if f == "all" {
			for name := range logger.DefaultLogger.Facilities() {
				logger.DefaultLogger.SetDebug(name, true)
			}
			continue
		}
		if _, ok := logger.DefaultLogger.Facilities()[f]; !ok {
			l.Warnf("Unknown debug facility %q", f)
		}
		logger.DefaultLogger.SetDebug(f, true)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	l.Infoln("Serving metrics on", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Warnln("Metrics listener:", err)
	}
}

// startNode creates a node that shuts itself down on interrupt.
func startNode(cfg config.NodeConfiguration) (*node.Node, error) {
	return node.New(cfg, node.WithShutdownSignals(os.Interrupt, syscall.SIGTERM))
}

func main() {
	var cli CLI
	parser := kong.Must(&cli,
		kong.Name("rdds"),
		kong.Description("Brokerless publish/subscribe over UDP multicast discovery."),
		kong.UsageOnError(),
		kong.Vars{
			"version":    build.LongVersion,
			"maxdomain":  fmt.Sprint(config.MaxDomainID),
			"configfile": locations.ConfigFile(),
		},
	)
	kongplete.Complete(parser)

	kongCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	kongCtx.FatalIfErrorf(kongCtx.Run())
}
