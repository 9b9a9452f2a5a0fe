package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/modoterra/unitgate/internal/buildinfo"
	"github.com/modoterra/unitgate/pkg/auth"
	"github.com/modoterra/unitgate/pkg/client"
	"github.com/modoterra/unitgate/pkg/config"
	"github.com/modoterra/unitgate/pkg/core"
	"github.com/modoterra/unitgate/pkg/daemon/service"
	tuimodel "github.com/modoterra/unitgate/pkg/tui/model"
)

const (
	envURL       = "UNITGATE_URL"
	envToken     = "UNITGATE_TOKEN"
	envTokenFile = "UNITGATE_TOKEN_FILE"
)

var (
	serverURL string
	tokenFile string
	byOrdinal bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "unitgate",
	Short:        "Client for the unitgate systemd HTTP API",
	Long:         "unitgate lists, inspects and controls systemd services through a unitgated server.",
	RunE:         runTUI,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", envOr(envURL, client.DefaultURL), "unitgated base URL (env "+envURL+")")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", envOr(envTokenFile, config.Default().TokenFile), "file holding the bearer secret (env "+envTokenFile+"; "+envToken+" takes precedence)")
	rootCmd.PersistentFlags().BoolVar(&byOrdinal, "ordinal", false, "treat a numeric unit argument as an ordinal even if a unit has that name")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(actionCmd(core.VerbStart))
	rootCmd.AddCommand(actionCmd(core.VerbStop))
	rootCmd.AddCommand(actionCmd(core.VerbRestart))
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(hashTokenCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newClient builds an API client from flags and environment.
func newClient() (*client.Client, error) {
	if tok := os.Getenv(envToken); tok != "" {
		return client.New(serverURL, strings.TrimSpace(tok)), nil
	}
	t, err := auth.LoadToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w (set %s or --token-file)", err, envToken)
	}
	secret, err := t.Secret()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tokenFile, err)
	}
	return client.New(serverURL, secret), nil
}

// resolveUnit turns a CLI argument into an ordinal. A unit name is looked up
// in the current listing and sent as the expected filename so the server
// refuses if the listing shifts in between. An exact filename match wins over
// a numeric reading, so a unit named "42" stays addressable; a number that
// names no unit is used as the ordinal. With --ordinal a number is always an
// ordinal and no listing is fetched.
func resolveUnit(ctx context.Context, c *client.Client, arg string) (int, string, error) {
	n, numErr := strconv.Atoi(arg)
	if numErr == nil && n < 0 {
		return 0, "", fmt.Errorf("ordinal must be non-negative: %d", n)
	}
	if byOrdinal {
		if numErr != nil {
			return 0, "", fmt.Errorf("not an ordinal: %s", arg)
		}
		return n, "", nil
	}

	name := strings.TrimSuffix(arg, core.ServiceSuffix)
	ix, err := c.List(ctx)
	if err != nil {
		return 0, "", err
	}
	for i, u := range ix {
		if u.Filename == name {
			return i, name, nil
		}
	}
	if numErr == nil {
		return n, "", nil
	}
	return 0, "", fmt.Errorf("unit not found: %s", arg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// --- Root: TUI ---

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse units interactively",
	RunE:  runTUI,
}

func runTUI(_ *cobra.Command, _ []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	p := tea.NewProgram(tuimodel.New(c), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// --- List ---

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List service units with their ordinals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		ix, err := c.List(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if listJSON {
			return writeJSON(out, ix)
		}
		if len(ix) == 0 {
			fmt.Fprintln(out, "no units")
			return nil
		}
		fmt.Fprintf(out, "%-4s %-32s %-10s %-10s %-10s %s\n", "#", "UNIT", "LOAD", "ACTIVE", "SUB", "DESCRIPTION")
		for i, u := range ix {
			fmt.Fprintf(out, "%-4d %-32s %-10s %-10s %-10s %s\n", i, u.Filename, u.Load, u.Active, u.Sub, u.Description)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

// --- Status ---

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <ordinal|unit>",
	Short: "Show the status fields of a unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		ordinal, expect, err := resolveUnit(ctx, c, args[0])
		if err != nil {
			return err
		}
		reply, err := c.Status(ctx, ordinal, expect)
		if err != nil {
			return err
		}
		if reply.Warning != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", reply.Warning)
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			return writeJSON(out, reply.Fields)
		}
		fmt.Fprintf(out, "%s\n", reply.Unit+core.ServiceSuffix)
		labels := make([]string, 0, len(reply.Fields))
		for label := range reply.Fields {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(out, "  %s: %s\n", label, reply.Fields[label])
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

// --- Logs ---

var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs <ordinal|unit>",
	Short: "Print the last journal lines of a unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if logsLines < -1 {
			return fmt.Errorf("--lines must be non-negative")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		ordinal, expect, err := resolveUnit(ctx, c, args[0])
		if err != nil {
			return err
		}
		lines, err := c.Logs(ctx, ordinal, logsLines, expect)
		if err != nil {
			return err
		}
		printLines(cmd.OutOrStdout(), lines)
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", -1, "number of lines (server default when omitted)")
}

// --- Start / Stop / Restart ---

func actionCmd(verb core.Verb) *cobra.Command {
	return &cobra.Command{
		Use:   string(verb) + " <ordinal|unit>",
		Short: strings.ToUpper(string(verb[:1])) + string(verb[1:]) + " a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			ordinal, expect, err := resolveUnit(ctx, c, args[0])
			if err != nil {
				return err
			}
			lines, err := c.Action(ctx, ordinal, verb, expect)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printLines(out, lines)
			fmt.Fprintf(out, "%s → %s ✓\n", verb, args[0])
			return nil
		},
	}
}

// --- Ping ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the server is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		h, err := client.New(serverURL, "").Health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (unitgated %s)\n", h.Status, h.Version)
		return nil
	},
}

// --- Hash token ---

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token",
	Short: "Print a bcrypt hash of a secret for the server's token file",
	Long:  "Reads the secret from the terminal without echo, or from stdin when piped.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		secret, err := readSecret(cmd)
		if err != nil {
			return err
		}
		h, err := auth.Hash(secret)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	},
}

func readSecret(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Secret: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return line, nil
}

// --- Service ---

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the unitgated systemd service",
}

var (
	serviceBinary string
	serviceConfig string
	serviceSocket string
)

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start unitgated as a system service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := service.Options{
			BinaryPath: serviceBinary,
			ConfigPath: serviceConfig,
			Listen:     serviceSocket,
		}
		if err := service.Install(opts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", service.UnitPath())
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the unitgated system service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := service.Uninstall(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "uninstalled")
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether unitgated is installed and reachable",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		fmt.Fprintln(cmd.OutOrStdout(), service.Status(ctx, client.New(serverURL, "").Ping))
	},
}

func init() {
	serviceInstallCmd.Flags().StringVar(&serviceBinary, "binary", "", "unitgated path (looked up in PATH when empty)")
	serviceInstallCmd.Flags().StringVar(&serviceConfig, "config", config.DefaultPath, "config file passed to unitgated")
	serviceInstallCmd.Flags().StringVar(&serviceSocket, "socket", "", "also install a socket unit listening on this address")
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "unitgate %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}
