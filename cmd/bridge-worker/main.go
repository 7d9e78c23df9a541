// bridge-worker drives the bridge over stdin/stdout with the line-delimited
// JSON protocol, for embedding the engine in a parent process (UI shells,
// scripting hosts) without running the HTTP daemon. Logs go to stderr.
package main

import (
	"context"
	"os"
	"time"

	"dcbridge/internal/bridge"
	"dcbridge/internal/engine"
	_ "dcbridge/internal/engine/sim"
	"dcbridge/internal/worker"
	"dcbridge/pkg/config"
	"dcbridge/pkg/logging"
)

func main() {
	logger := logging.NewLoggerWithService("bridge-worker")
	config.LoadEnv(logger)

	engineName := config.GetEnv("ENGINE", "sim")
	configDir := config.GetEnv("ENGINE_CONFIG_DIR", "")
	eng, err := engine.Open(engineName, configDir)
	if err != nil {
		logger.WithError(err).WithField("engine", engineName).Fatal("Failed to open engine")
	}

	br := bridge.New(eng, logger, bridge.Options{
		MailboxCapacity: config.GetEnvInt("EVENT_MAILBOX_SIZE", 1024),
	})
	if err := br.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start bridge")
	}
	defer br.Close()

	timeout := time.Duration(config.GetEnvInt("COMMAND_TIMEOUT_SECONDS", 30)) * time.Second
	w := worker.New(br, logger, os.Stdin, os.Stdout, timeout)

	logger.WithField("engine", engineName).Info("Worker ready")
	if err := w.Run(context.Background()); err != nil {
		logger.WithError(err).Fatal("Worker session failed")
	}
	logger.Info("Worker session ended")
}
