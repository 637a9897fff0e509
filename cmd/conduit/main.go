// Command conduit runs the integration router as a standalone HTTP service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the conduit command tree.
func NewRootCommand() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "conduit",
		Short:         "Route inbound events to downstream systems",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")

	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().StringVarP(&addr, "listen-addr", "l", "", "host:port to listen on (overrides config)")

	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "Work with route files",
	}
	validateCmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate every route in a routes file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateRoutesFile(cmd.OutOrStdout(), args[0])
		},
	}
	routesCmd.AddCommand(validateCmd)

	rootCmd.AddCommand(serveCmd, routesCmd)
	return rootCmd
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
