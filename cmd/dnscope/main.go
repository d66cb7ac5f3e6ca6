// Command dnscope resolves hostnames through the layered resolution
// overlay, optionally loading static overrides from a hosts-style
// file and applying per-invocation scoped overrides.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/dnscope/dnscope"
	"github.com/dnscope/dnscope/internal/hostsfile"
	"github.com/dnscope/dnscope/internal/sysresolver"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "dnscope",
		Short:         "Layered, scoped hostname-resolution overlay",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rc := &resolveCommand{
		hostsPath: "",
		overrides: nil,
		server:    "",
		verbose:   false,
	}
	resolve := &cobra.Command{
		Use:   "resolve HOSTNAME...",
		Short: "Resolve hostnames through the overlay",
		Args:  cobra.MinimumNArgs(1),
		RunE:  rc.run,
	}
	flags := resolve.Flags()
	flags.StringVar(&rc.hostsPath, "hosts", "", "hosts-style file providing static overrides")
	flags.StringArrayVar(&rc.overrides, "map", nil, "scoped override in HOST=ADDRESS form (repeatable)")
	flags.StringVar(&rc.server, "server", "", "resolve via DNS over UDP using this server (e.g., 8.8.8.8:53)")
	flags.BoolVarP(&rc.verbose, "verbose", "v", false, "emit debug messages")
	root.AddCommand(resolve)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveCommand contains the state of the resolve subcommand.
type resolveCommand struct {
	// hostsPath optionally points to a hosts-style file.
	hostsPath string

	// overrides optionally contains HOST=ADDRESS scoped overrides.
	overrides []string

	// server optionally selects a DNS-over-UDP server endpoint.
	server string

	// verbose indicates whether to emit debug messages.
	verbose bool
}

func (c *resolveCommand) run(cmd *cobra.Command, args []string) error {
	log.SetHandler(&logHandler{Writer: os.Stderr})
	if c.verbose {
		log.SetLevel(log.DebugLevel)
	}
	config, err := c.loadConfig()
	if err != nil {
		return err
	}
	var resolver dnscope.Resolver
	if c.server != "" {
		resolver = sysresolver.NewUDPResolver(log.Log, c.server)
	}
	svc := dnscope.NewService(config, log.Log, resolver)
	ctx := dnscope.WithScope(context.Background())
	for _, entry := range c.overrides {
		hostname, address, found := strings.Cut(entry, "=")
		if !found || hostname == "" || address == "" {
			return fmt.Errorf("invalid --map entry (want HOST=ADDRESS): %q", entry)
		}
		svc.SetOverride(ctx, hostname, address)
	}
	failed := false
	for _, hostname := range args {
		addrs, err := svc.LookupAllHostAddr(ctx, hostname)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\t%s\n", hostname, color.RedString(err.Error()))
			failed = true
			continue
		}
		for _, ip := range addrs {
			fmt.Printf("%s\t%s\n", hostname, color.GreenString(ip.String()))
		}
	}
	if failed {
		return errors.New("some lookups failed")
	}
	return nil
}

// loadConfig builds the static override configuration from the hosts
// file, when given, and otherwise returns an empty configuration.
func (c *resolveCommand) loadConfig() (*dnscope.Config, error) {
	var mappings []dnscope.Mapping
	if c.hostsPath != "" {
		var err error
		mappings, err = hostsfile.Load(c.hostsPath)
		if err != nil {
			return nil, err
		}
	}
	return dnscope.NewConfig(mappings)
}
