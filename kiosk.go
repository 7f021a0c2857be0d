package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"church-checkin/config"
	"church-checkin/internal/auth"
	"church-checkin/internal/client"
	"church-checkin/internal/scanner"
)

const (
	deviceOpenAttempts = 5
	deviceOpenDelay    = 2 * time.Second
)

var kioskFlags = struct {
	secret string
}{}

func kioskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kiosk",
		Short: "Run a scanning station that submits decoded codes to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return kioskRun(cmd, config.FromContext(cmd.Context()))
		},
	}
	cmd.Flags().StringVar(&kioskFlags.secret, "secret", "", "scanner secret used to obtain a session token")
	return cmd
}

func kioskRun(cmd *cobra.Command, cfg *config.Config) error {
	logger := commonRun(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.ServerURL,
		client.WithToken(cfg.ScannerToken),
		client.WithStation(cfg.StationName),
		client.WithLogger(logger),
	)
	if kioskFlags.secret != "" {
		expiresAt, err := api.Login(ctx, auth.RoleScanner, kioskFlags.secret)
		if err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}
		logger.Info("scanner session started", "component", programName, "expires_at", expiresAt)
	}

	var source io.Reader = os.Stdin
	if cfg.CaptureDevice != "-" {
		device, err := scanner.OpenDevice(ctx, cfg.CaptureDevice, deviceOpenAttempts, deviceOpenDelay, logger)
		if err != nil {
			return err
		}
		source = device
	}

	capture := scanner.NewLineCapture(source, logger)
	out := cmd.OutOrStdout()
	debouncer := scanner.NewDebouncer(capture, api, func(o scanner.Outcome) {
		fmt.Fprintln(out, o.Message())
	}, scanner.Options{Logger: logger})

	logger.Info("kiosk ready", "component", programName, "station", cfg.StationName, "server", cfg.ServerURL)
	fmt.Fprintln(out, "Ready to scan")

	err := debouncer.Run(ctx)
	debouncer.Close()
	stopCapture(capture, cfg.ShutdownTimeout)
	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("kiosk stopped", "component", programName)
	return nil
}

// stopCapture releases the capture source. Stdin cannot be interrupted, so
// the wait is bounded.
func stopCapture(capture scanner.Capture, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = capture.Stop()
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	}
}
