package main

import (
	"fmt"

	"github.com/darkweak/offline-gateway/configuration"
	"github.com/darkweak/offline-gateway/helpers"
	"github.com/darkweak/offline-gateway/pkg/storage"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type options struct {
	configPath string
	watch      bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "offline-gateway",
		Short:         "Offline-first caching gateway in front of a static site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", configuration.DefaultConfigurationPath, "Path of the YAML configuration file")

	cmd.AddCommand(
		newServeCmd(&opts),
		newValidateCmd(&opts),
		newPartitionsCmd(&opts),
		newVersionCmd(),
	)

	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Install the configured version and serve the intercepted requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := configuration.GetConfiguration(opts.configPath)
			if err != nil {
				return err
			}

			return serve(cmd.Context(), c, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Install the new version on every configuration file change")

	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := configuration.GetConfiguration(opts.configPath)
			if err != nil {
				return err
			}
			cmd.Printf("The configuration %s is valid for the version %s with %d manifest entries\n", opts.configPath, c.GetVersion(), len(c.GetManifest().URLs()))

			return nil
		},
	}
}

func newPartitionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "partitions",
		Short: "List the stored partitions and their entries count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := configuration.GetConfiguration(opts.configPath)
			if err != nil {
				return err
			}
			helpers.InitializeLogger(c)

			s, err := storage.NewStorage(c)
			if err != nil {
				return fmt.Errorf("opening the %s storage: %w", opts.configPath, err)
			}
			for _, name := range s.ListPartitions() {
				cmd.Printf("%s\t%d\n", name, len(s.ListKeys(name)))
			}

			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version)
		},
	}
}
