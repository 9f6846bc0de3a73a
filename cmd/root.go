package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/amd/internal/config"
	"github.com/zjrosen/amd/internal/log"
	"github.com/zjrosen/amd/internal/ui/styles"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in the output pane.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	configErr error
	debugFlag bool

	// defaultConfigErr is a failed default-config write, logged once
	// logging starts.
	defaultConfigErr error
)

var rootCmd = &cobra.Command{
	Use:   "amd [flags] <command...>",
	Short: "Rerun a command whenever files change",
	Long: `amd (await-modify-do) runs a shell command, watches the directory tree
for file modifications, and reruns the command when files change.

The command's output is captured and shown live. Press r to rerun,
c to cancel the running command and q to quit.`,
	Example: `  amd cargo test
  amd -p ./src --debounce 1s go test ./...
  amd 'ls *Cargo*'`,
	Version:       version,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .amd/config.yaml, then ~/.config/amd/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"write a debug log (path from AMD_LOG, default ~/.config/amd/debug.log)")
	rootCmd.Flags().StringP("path", "p", "",
		"directory to watch (default: current directory)")
	rootCmd.Flags().Duration("debounce", 0,
		"minimum time between file change reruns")
	rootCmd.Flags().Bool("no-history", false,
		"do not record runs in the history database")

	// Everything after the first positional argument belongs to the command.
	rootCmd.Flags().SetInterspersed(false)

	_ = viper.BindPFlag("path", rootCmd.Flags().Lookup("path"))
	_ = viper.BindPFlag("debounce", rootCmd.Flags().Lookup("debounce"))
}

func initConfig() {
	if err := loadConfig(viper.GetViper(), cfgFile, &cfg); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No config file anywhere: write the documented defaults for next time.
			writeDefaultConfig(config.DefaultConfigPath())
			return
		}
		configErr = err
	}
}

// setDefaults registers every config key with viper so that environment
// overrides and Unmarshal see them.
func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("shell", d.Shell)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("path", d.Path)
	v.SetDefault("supersede", d.Supersede)
	v.SetDefault("diagnostics_env", d.DiagnosticsEnv)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.limit", d.History.Limit)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("ui.follow", d.UI.Follow)
	v.SetDefault("ui.show_help", d.UI.ShowHelp)
}

// loadConfig reads configuration into out. Lookup order:
//  1. file (the --config flag)
//  2. .amd/config.yaml (current directory)
//  3. ~/.config/amd/config.yaml (user config)
//
// A missing config file leaves out populated with defaults and returns
// viper.ConfigFileNotFoundError.
func loadConfig(v *viper.Viper, file string, out *config.Config) error {
	setDefaults(v, config.Defaults())
	v.SetEnvPrefix("AMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else if _, err := os.Stat(config.ProjectConfigPath); err == nil {
		v.SetConfigFile(config.ProjectConfigPath)
	} else {
		if dir := config.Dir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return fmt.Errorf("reading config: %w", readErr)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return readErr
}

// writeDefaultConfig writes the default config to path. Logging is not up
// yet when config loads, so a failure is kept for logConfigWarnings.
func writeDefaultConfig(path string) {
	if path == "" {
		return
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		defaultConfigErr = fmt.Errorf("writing default config %s: %w", path, err)
	}
}

func logConfigWarnings() {
	if defaultConfigErr != nil {
		log.ErrorErr(log.CatConfig, "Writing default config failed", defaultConfigErr)
	}
}

// debugEnabled reports whether --debug or AMD_DEBUG asks for a log file.
func debugEnabled() bool {
	return debugFlag || os.Getenv("AMD_DEBUG") != ""
}

// initLogging opens the debug log when enabled and returns its absolute
// path, or "" when logging is off. The returned cleanup is always safe to
// call.
func initLogging() (func(), string, error) {
	if !debugEnabled() {
		return func() {}, "", nil
	}
	logPath := os.Getenv("AMD_LOG")
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	if abs, err := filepath.Abs(logPath); err == nil {
		logPath = abs
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return nil, "", fmt.Errorf("initializing logging: %w", err)
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return nil, "", fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "amd starting", "version", version, "config", viper.ConfigFileUsed(), "logPath", logPath)
	return cleanup, logPath, nil
}

// watchRoot resolves the directory to watch and run the command in.
func watchRoot(path string) (string, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		path = wd
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("watch path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("watch path %s is not a directory", abs)
	}
	return abs, nil
}

func runApp(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}
	if noHistory, _ := cmd.Flags().GetBool("no-history"); noHistory {
		cfg.History.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, logPath, err := initLogging()
	if err != nil {
		return err
	}
	defer cleanup()
	logConfigWarnings()

	root, err := watchRoot(cfg.Path)
	if err != nil {
		return err
	}

	styles.ApplyColorProfile(os.Getenv("NO_COLOR") != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cfg, strings.Join(args, " "), root, logPath)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Run(ctx, s.runUI)
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "amd: %v\n", err)
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
