package console

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alphaboost/console/internal/backend"
)

// DefaultGateway is the gateway address used when none is configured.
const DefaultGateway = "http://localhost:8080"

// NewRootCommand builds the alphactl command tree. Flags may also be set
// through ALPHA_GATEWAY, ALPHA_APP, ALPHA_SESSION and ALPHA_CONFIG, or in
// the YAML config file. A generated app name is saved to that file so
// later runs keep the same identity and session.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ALPHA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("gateway", DefaultGateway)

	var con *Console

	root := &cobra.Command{
		Use:           "alphactl",
		Short:         "Trade console for the Alpha-Boost gateway",
		Long:          "alphactl submits simulated trades, shows predictions and reviews history, portfolio and the call journal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("config")
			if path != "" {
				if err := readConfig(v, path); err != nil {
					return err
				}
			}

			app := v.GetString("app")
			if app == "" {
				app = DefaultAppName()
				if path != "" {
					if err := saveApp(path, app); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Using app name %s (saved to %s)\n", app, path)
				}
			}
			con = New(v.GetString("gateway"), app, v.GetString("session"), in, cmd.OutOrStdout())
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("gateway", DefaultGateway, "gateway base URL")
	flags.String("app", "", "app name sent as the client identity (default RobinTrade-<random>)")
	flags.String("session", "", "session id (default: the app name)")
	flags.String("config", defaultConfigPath(), "YAML file holding saved settings (.yaml or .yml)")
	for _, name := range []string{"gateway", "app", "session", "config"} {
		v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "register",
			Short: "Register the app with the backend",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return con.Register(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete the app from the backend",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return con.Delete(cmd.Context())
			},
		},
		tradeCommand(&con),
		&cobra.Command{
			Use:     "transactions",
			Aliases: []string{"history"},
			Short:   "List submitted transactions",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return con.Transactions(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "portfolio",
			Short: "Show open positions and trade history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return con.Portfolio(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "predict <ticker>",
			Short: "Show the prediction for a ticker",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return con.Predict(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "popular",
			Short: "Show the most traded symbol",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return con.Popular(cmd.Context())
			},
		},
		logsCommand(&con),
	)
	return root
}

func tradeCommand(con **Console) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "trade <buy|sell> <ticker> <qty> <price>",
		Short: "Preview the prediction for a ticker, then submit a trade",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return (*con).Trade(cmd.Context(), args[0], args[1], args[2], args[3], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "submit without asking for confirmation")
	return cmd
}

func logsCommand(con **Console) *cobra.Command {
	var clearLogs bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the call journal for this session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return (*con).Logs(cmd.Context(), clearLogs)
		},
	}
	cmd.Flags().BoolVar(&clearLogs, "clear", false, "clear the journal instead of printing it")
	return cmd
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "alphactl", "config.yaml")
}

// readConfig loads path into v. A missing file is not an error.
func readConfig(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("console: read %s: %w", path, err)
	}
	return nil
}

// saveApp stores app in the config file at path, keeping other keys.
func saveApp(path, app string) error {
	s := viper.New()
	if err := readConfig(s, path); err != nil {
		return err
	}
	s.Set("app", app)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("console: save app name: %w", err)
	}
	if err := s.WriteConfigAs(path); err != nil {
		return fmt.Errorf("console: save app name: %w", err)
	}
	return nil
}

// Describe renders err for the terminal, unpacking backend failures.
func Describe(err error) string {
	if errors.Is(err, ErrDeclined) {
		return "cancelled"
	}
	if f, ok := backend.AsFailure(err); ok {
		if f.Message != "" {
			return fmt.Sprintf("%s (%d): %s", f.Kind, f.Status, f.Message)
		}
		return fmt.Sprintf("%s (%d)", f.Kind, f.Status)
	}
	return err.Error()
}
