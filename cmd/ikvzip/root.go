package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configName = ".ikvzip"
	envPrefix  = "IKVZIP"
)

// app carries the state shared by every subcommand.
type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

func newApp(out, errOut io.Writer) *app {
	return &app{v: viper.New(), out: out, errOut: errOut}
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "ikvzip",
		Short:         "Write and read ZIP archives with an embedded lookup index",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// cmd.Flags includes the persistent flags of the root.
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if err := a.initConfig(); err != nil {
				return err
			}
			a.initLogger()
			return nil
		},
	}
	root.PersistentFlags().String("config", "", "config file (default $HOME/"+configName+".yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.packCommand(),
		a.lsCommand(),
		a.catCommand(),
		a.verifyCommand(),
		a.inspectCommand(),
	)

	root.SetOut(a.out)
	root.SetErr(a.errOut)
	return root
}

// initConfig reads the config file and environment. A missing default
// config file is not an error; a missing explicit one is.
func (a *app) initConfig() error {
	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.SetConfigName(configName)
		a.v.SetConfigType("yaml")
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func (a *app) initLogger() {
	level := slog.LevelWarn
	if a.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
}
