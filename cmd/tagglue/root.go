package main

import (
	"fmt"
	"io"

	"github.com/joeycumines/go-tagglue/config"
	"github.com/joeycumines/go-tagglue/internal/logging"
	"github.com/joeycumines/go-tagglue/jsfunc"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	config   string
	logLevel string
}

func newRootCommand() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:          `tagglue`,
		Short:        `Watch SPA elements, and track their values to analytics`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.config, `config`, `c`, `tagglue.yaml`, `path to the configuration file`)
	cmd.PersistentFlags().StringVar(&flags.logLevel, `log-level`, ``, `overrides logging.level`)
	cmd.AddCommand(
		newCheckCommand(&flags),
		newWatchCommand(&flags),
	)
	return cmd
}

// load reads the config, applying the log level flag.
func (x *rootFlags) load() (*config.Config, error) {
	c, err := config.Load(x.config)
	if err != nil {
		return nil, err
	}
	if x.logLevel != `` {
		c.Logging.Level = x.logLevel
	}
	return c, nil
}

func newLogger(w io.Writer, c *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(w, level, c.Logging.Console), nil
}

func newCheckCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   `check`,
		Short: `Validate the configuration, including extractors and JavaScript`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.load()
			if err != nil {
				return err
			}
			if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
				return err
			}
			env, err := jsfunc.NewEnv(jsfunc.WithTimeout(c.Session.JSTimeout))
			if err != nil {
				return err
			}
			built, err := c.Build(env)
			if err != nil {
				return fmt.Errorf(`config: %s: %w`, flags.config, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d monitors, %d trackers\n", flags.config, len(built.Monitors), len(built.Trackers))
			return err
		},
	}
}
