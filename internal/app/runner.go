package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/btcops/internal/config"
	clierr "github.com/ggonzalez94/btcops/internal/errors"
	"github.com/ggonzalez94/btcops/internal/model"
	"github.com/ggonzalez94/btcops/internal/network"
	"github.com/ggonzalez94/btcops/internal/node"
	"github.com/ggonzalez94/btcops/internal/out"
	"github.com/ggonzalez94/btcops/internal/schema"
	"github.com/ggonzalez94/btcops/internal/version"
	"github.com/ggonzalez94/btcops/internal/wallet"
)

// nodeClient is a connected wallet client the runner must close.
type nodeClient interface {
	wallet.Client
	Close()
}

type connectFunc func(ctx context.Context, req wallet.Request, log logrus.FieldLogger) (nodeClient, error)

type Runner struct {
	stdout  io.Writer
	stderr  io.Writer
	now     func() time.Time
	connect connectFunc
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout:  stdout,
		stderr:  stderr,
		now:     time.Now,
		connect: connectNode,
	}
}

// connectNode resolves the endpoint for the request's network and connects.
func connectNode(ctx context.Context, req wallet.Request, log logrus.FieldLogger) (nodeClient, error) {
	n := req.Network()
	ep, err := network.Resolve(n, req.Overrides())
	if err != nil {
		return nil, err
	}
	client, err := node.Connect(ctx, n, ep, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	log         *logrus.Logger
	root        *cobra.Command
	lastCommand string
	lastNetwork string
	lastDryRun  bool
}

func (r *Runner) Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := &runtimeState{runner: r, log: newLogger(r.stderr, logrus.WarnLevel)}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	err = normalizeRunError(err)
	if err == nil {
		return 0
	}

	state.renderError("", err)
	return clierr.ExitCode(err)
}

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return logger
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Automation-friendly Bitcoin Core wallet operations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			s.lastCommand = trimRootPath(cmd.CommandPath())
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log.SetLevel(settings.LogLevel)
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain key=value text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableActions, "enable-actions", "", "Allowlist wallet actions: send, getnewaddress, getbalance (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.LockTimeout, "lock-timeout", "", "How long to wait for the wallet lock")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level written to stderr (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	annotateEnv(cmd.PersistentFlags(), "enable-actions", "BTCOPS_ENABLE_ACTIONS")
	annotateEnv(cmd.PersistentFlags(), "lock-timeout", "BTCOPS_LOCK_TIMEOUT")
	annotateEnv(cmd.PersistentFlags(), "log-level", "BTCOPS_LOG_LEVEL")

	cmd.AddCommand(s.newRunCommand())
	cmd.AddCommand(s.newSendCommand())
	cmd.AddCommand(s.newAddressCommand())
	cmd.AddCommand(s.newBalanceCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}
	return cmd
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Error:   nil,
		Meta:    s.meta(commandPath),
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
	}
	body := &model.ErrorBody{
		Code:    code,
		Type:    clierr.TypeName(clierr.Code(code)),
		Message: message,
	}
	if f, ok := wallet.AsFailure(err); ok {
		body.Action = string(f.Action)
		body.Inputs = f.Inputs
		body.Committed = f.CommittedFields()
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error:   body,
		Meta:    s.meta(commandPath),
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) meta(commandPath string) model.EnvelopeMeta {
	return model.EnvelopeMeta{
		RequestID: newRequestID(),
		Timestamp: s.runner.now().UTC(),
		Command:   commandPath,
		Network:   s.lastNetwork,
		DryRun:    s.lastDryRun,
	}
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
		"if any flags in the group",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
