package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/biogit/biogit/internal/logging"
	"github.com/biogit/biogit/pkg/server"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the biogit repository server",
	}
	cmd.AddCommand(newServerStartCmd())
	return cmd
}

func newServerStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <port> <repo-root> <token-secret> [<log-dir>] [<log-name>]",
		Short: "Start listening for biogit clients on port",
		Args:  cobra.RangeArgs(3, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := args[0]
			repoRoot := args[1]
			secret := args[2]

			logDir := "."
			if len(args) >= 4 {
				logDir = args[3]
			}
			logName := "biogit"
			if len(args) == 5 {
				logName = args[4]
			}

			logger, err := newServerLogger(logDir, logName)
			if err != nil {
				return err
			}
			audit, err := logging.New(logDir, logName+"-audit", false)
			if err != nil {
				return err
			}
			defer audit.Close()

			srv, err := server.New(repoRoot, secret, logger, audit)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(net.JoinHostPort("", port))
		},
	}
}

// newServerLogger opens (creating as needed) <log-dir>/<log-name>_<date>.log
// in append mode and returns a logger writing to it, matching the spec's
// server log naming contract. This is the plain operational log (startup,
// shutdown); per-dispatched-message records go through the audit logger.
func newServerLogger(logDir, logName string) (*log.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("server: create log dir: %w", err)
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("%s_%s.log", logName, time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("server: open log file: %w", err)
	}
	return log.New(f, "", log.LstdFlags), nil
}
