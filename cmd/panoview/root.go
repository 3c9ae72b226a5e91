package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/streetside/panoview/internal/config"
	"github.com/streetside/panoview/internal/logging"
)

// session carries what PersistentPreRunE sets up for a command.
type session struct {
	configDir string
	logLevel  string
	start     time.Time

	logs    *logging.Manager
	logFile *os.File
	log     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	s := &session{log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Street-level panorama viewer driven by map selections",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return s.teardown()
		},
	}

	cmd.PersistentFlags().StringVar(&s.configDir, "config-dir", ".", "Directory containing "+config.FileName)
	cmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "", "Log level (TRACE, DEBUG, INFO, WARN, ERROR)")

	cmd.AddCommand(
		newRunCmd(s),
		newResolveCmd(s),
		newLookupCmd(s),
		newJournalCmd(s),
	)
	return cmd
}

// setup loads configuration and logging. The interactive surface owns the
// terminal, so it logs to the session file only; other commands log to
// stderr.
func (s *session) setup(cmd *cobra.Command) error {
	s.start = time.Now()

	envLoaded, err := config.LoadEnvFile(s.configDir)
	if err != nil {
		return err
	}
	if err := config.LoadOptional(s.configDir); err != nil {
		return err
	}

	level := s.logLevel
	if level == "" {
		level = config.GetString("logLevel")
	}

	opts := logging.Options{Level: level}
	if cmd.Name() == "run" {
		f, err := logging.OpenSessionFile(config.GetString("logsDir"), appName, s.start)
		if err != nil {
			return err
		}
		s.logFile = f
		opts.File = f
	} else {
		opts.Console = cmd.ErrOrStderr()
	}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		opts.GraylogAddress = gl.Address
	}

	logs, err := logging.Setup(opts)
	if err != nil {
		return err
	}
	s.logs = logs
	s.log = logs.Logger()
	if envLoaded {
		s.log.Debug().Str("file", config.EnvFileName).Msg("Loaded environment overrides")
	}
	return nil
}

func (s *session) teardown() error {
	var closers []io.Closer
	if s.logs != nil {
		closers = append(closers, s.logs)
	}
	if s.logFile != nil {
		closers = append(closers, s.logFile)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	s.logs, s.logFile = nil, nil
	return nil
}
