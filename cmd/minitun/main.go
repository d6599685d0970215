// Command minitun runs one end of a point-to-point IP-over-UDP tunnel.
//
//	minitun [options] client|server
//
// The client sends all its traffic to the server, which forwards it.
// Both ends need the privileges to create tun devices and, for the
// client, to change the routing table.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/pborman/getopt/v2"

	"github.com/ooni/minitun/pkg/config"
	"github.com/ooni/minitun/pkg/tunnel"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// startFunc starts a tunnel. Tests replace it to avoid touching the system.
var startFunc = tunnel.Start

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run parses args and runs the tunnel until SIGINT or SIGTERM. It
// returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	set := getopt.New()
	set.SetProgram("minitun")
	set.SetParameters("client|server")
	optConfig := set.StringLong("config", 'c', "", "YAML configuration file")
	optServer := set.StringLong("server", 's', "", "server host name or address (client only)")
	optPort := set.IntLong("port", 'p', config.DefaultPort, "UDP port")
	optDevice := set.StringLong("device", 'd', "", "tun device name")
	optMTU := set.IntLong("mtu", 'm', 0, "tun device MTU (0 keeps the default)")
	optSkipRoutes := set.BoolLong("skip-routes", 0, "do not change the routing table (client only)")
	optNoSplit := set.BoolLong("no-split", 0, "install 0.0.0.0/0 instead of two /1 routes (client only)")
	optNoForward := set.BoolLong("no-forward", 0, "do not enable IPv4 forwarding (server only)")
	optVerbosity := set.Uint16Long("verbosity", 'v', 4, "verbosity level (1 to 5, 1 is lowest)")
	optHelp := set.BoolLong("help", 'h', "display help")

	if err := set.Getopt(args, nil); err != nil {
		fmt.Fprintf(stderr, "minitun: %s\n", err.Error())
		set.PrintUsage(stderr)
		return exitUsage
	}
	if *optHelp {
		set.PrintUsage(stdout)
		return exitOK
	}
	if set.NArgs() != 1 {
		fmt.Fprintln(stderr, "minitun: expected exactly one of client or server")
		set.PrintUsage(stderr)
		return exitUsage
	}
	role, err := config.ParseRole(set.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "minitun: %s\n", err.Error())
		set.PrintUsage(stderr)
		return exitUsage
	}

	logger := &log.Logger{
		Level:   levelFromVerbosity(*optVerbosity),
		Handler: NewHandler(stderr),
	}

	// the command line overrides the configuration file
	opts := []config.Option{config.WithLogger(logger)}
	if *optConfig != "" {
		opts = append(opts, config.WithConfigFile(*optConfig))
	}
	opts = append(opts, config.WithRole(role))
	if set.IsSet("server") {
		opts = append(opts, config.WithRemote(*optServer))
	}
	if set.IsSet("port") {
		opts = append(opts, config.WithPort(*optPort))
	}
	if set.IsSet("device") {
		opts = append(opts, config.WithDeviceName(*optDevice))
	}
	if set.IsSet("mtu") {
		opts = append(opts, config.WithMTU(*optMTU))
	}
	if *optSkipRoutes {
		opts = append(opts, config.WithSkipRoutes(true))
	}
	if *optNoSplit {
		opts = append(opts, config.WithSplitDefaultRoute(false))
	}
	if *optNoForward {
		opts = append(opts, config.WithForwarding(false))
	}
	cfg := config.NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "minitun: %s\n", err.Error())
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tun, err := startFunc(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("cannot start the tunnel")
		return exitError
	}
	logger.Infof("%s running on %s (%s)", role, tun.DeviceName(), tun.LocalAddr())

	if err := tun.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("tunnel failed")
		return exitError
	}
	return exitOK
}
