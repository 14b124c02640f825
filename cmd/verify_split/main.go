// verify_split checks that the login page of a locally served web app still
// renders its sign-in button after code splitting, and records a screenshot.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajsharma/verify_split/internal/config"
	"github.com/ajsharma/verify_split/internal/logger"
	"github.com/ajsharma/verify_split/internal/verify"
)

// errVerificationFailed signals a failed run under --strict. Its message has
// already been printed, so main exits without repeating it.
var errVerificationFailed = errors.New("verification failed")

var cfg = config.DefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "verify_split",
	Short: "Verify the login page renders its sign-in button and take a screenshot",
	Long: `verify_split launches a headless browser, opens the target app, waits for
the sign-in button to become visible and writes a screenshot of the result:
verification_login.png when the button appeared, verification_error.png otherwise.

Example:
  # Check the Vite dev server on the default port
  verify_split

  # Fail the process when verification fails and keep a JSONL report
  verify_split --strict --report ./verify.jsonl

  # Use rod instead of chromedp, with a visible browser
  verify_split --driver rod --headless=false`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(cfg, cmd.Flags().Changed); err != nil {
			return err
		}
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	// Target flags
	rootCmd.Flags().StringVarP(&cfg.TargetURL, "url", "u", cfg.TargetURL,
		"URL of the app to verify")
	rootCmd.Flags().StringVar(&cfg.Role, "role", cfg.Role,
		"Accessible role of the element to wait for")
	rootCmd.Flags().StringVar(&cfg.Name, "name", cfg.Name,
		"Exact accessible name of the element to wait for")

	// Timing flags
	rootCmd.Flags().DurationVar(&cfg.NavigationTimeout, "nav-timeout", cfg.NavigationTimeout,
		"Navigation timeout")
	rootCmd.Flags().DurationVar(&cfg.VisibleTimeout, "visible-timeout", cfg.VisibleTimeout,
		"How long to wait for the element to become visible")
	rootCmd.Flags().DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval,
		"Visibility polling interval")
	rootCmd.Flags().DurationVar(&cfg.ScreenshotTimeout, "screenshot-timeout", cfg.ScreenshotTimeout,
		"Screenshot capture timeout")

	// Output flags
	rootCmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir,
		"Directory for screenshots")
	rootCmd.Flags().StringVar(&cfg.LoginScreenshot, "login-screenshot", cfg.LoginScreenshot,
		"File name of the success screenshot")
	rootCmd.Flags().StringVar(&cfg.ErrorScreenshot, "error-screenshot", cfg.ErrorScreenshot,
		"File name of the failure screenshot")
	rootCmd.Flags().BoolVar(&cfg.FullPage, "full-page", cfg.FullPage,
		"Capture the full scrollable page instead of the viewport")
	rootCmd.Flags().IntVar(&cfg.MaxWidth, "max-width", cfg.MaxWidth,
		"Downscale screenshots wider than this many pixels (0 keeps full size)")
	rootCmd.Flags().BoolVar(&cfg.CleanStale, "clean-stale", cfg.CleanStale,
		"Remove the other screenshot left by a previous run")
	rootCmd.Flags().StringVar(&cfg.ReportPath, "report", cfg.ReportPath,
		"Append a JSONL run report to this file")

	// Browser flags
	rootCmd.Flags().StringVar(&cfg.Driver, "driver", cfg.Driver,
		"Browser driver: chromedp, rod or playwright")
	rootCmd.Flags().BoolVar(&cfg.Headless, "headless", cfg.Headless,
		"Run the browser headless")
	rootCmd.Flags().StringVar(&cfg.ChromePath, "chrome-path", cfg.ChromePath,
		"Path to the Chrome executable (discovered when empty)")
	rootCmd.Flags().BoolVar(&cfg.NoSandbox, "no-sandbox", cfg.NoSandbox,
		"Disable the Chrome sandbox (containers)")
	rootCmd.Flags().IntVar(&cfg.WindowWidth, "window-width", cfg.WindowWidth,
		"Browser viewport width")
	rootCmd.Flags().IntVar(&cfg.WindowHeight, "window-height", cfg.WindowHeight,
		"Browser viewport height")
	rootCmd.Flags().BoolVar(&cfg.InstallBrowsers, "install-browsers", cfg.InstallBrowsers,
		"Install Playwright's Chromium before running (playwright driver)")

	// Process flags
	rootCmd.Flags().BoolVar(&cfg.Strict, "strict", cfg.Strict,
		"Exit with status 1 when verification fails")
	rootCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose,
		"Enable debug logging")

	rootCmd.Long += "\n\n" + envHelp()
	rootCmd.Version = config.Version
}

func envHelp() string {
	var b strings.Builder
	b.WriteString("Environment (also read from .env; explicit flags win):")
	for _, v := range config.EnvVars() {
		fmt.Fprintf(&b, "\n  %-26s --%s", v.Key, v.Flag)
	}
	return b.String()
}

func run(ctx context.Context, stdout, stderr io.Writer) error {
	log := logger.New(cfg.Verbose, stderr)
	defer log.Sync()

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Warn("received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	driver, err := newDriver(cfg, log)
	if err != nil {
		return err
	}

	log.Debug("starting verify_split",
		zap.String("version", config.Version),
		zap.String("driver", driver.Name()),
		zap.String("output", cfg.OutputDir))

	v := verify.New(cfg, driver, log, stdout)

	if cfg.ReportPath != "" {
		rw, err := logger.OpenReport(cfg.ReportPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := rw.Close(); err != nil {
				log.Warn("failed to close report", zap.String("path", rw.Path()), zap.Error(err))
			}
		}()
		v.SetReport(rw)
	}

	outcome, err := v.Run(ctx)
	if err != nil {
		fmt.Fprintln(stdout, verify.MessageFailedPrefix+err.Error())
		return errVerificationFailed
	}

	if !outcome.OK() && cfg.Strict {
		return errVerificationFailed
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errVerificationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
