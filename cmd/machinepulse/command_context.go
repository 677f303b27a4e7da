package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/machinepulse/machinepulse/internal/logging"
)

// annotationStructuredLog marks commands whose output is structured logs;
// their fatal-path errors are emitted through the logger instead of stderr
// prose.
const annotationStructuredLog = "structured-log"

type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var (
	commandExecMu  sync.Mutex
	commandExecCtx commandExecutionContext
)

func setCommandExecutionContext(ctx commandExecutionContext) {
	commandExecMu.Lock()
	commandExecCtx = ctx
	commandExecMu.Unlock()
}

func currentCommandExecutionContext() commandExecutionContext {
	commandExecMu.Lock()
	defer commandExecMu.Unlock()
	return commandExecCtx
}

func resetCommandExecutionContext() {
	setCommandExecutionContext(commandExecutionContext{})
}

func commandUsesStructuredLogging(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(cmd.Annotations[annotationStructuredLog]), "true")
}

// prepareCommand records the execution context and, for structured commands,
// installs the default logger before RunE fires.
func prepareCommand(cmd *cobra.Command) error {
	structured := commandUsesStructuredLogging(cmd)
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       cmd.CommandPath(),
		UsesStructuredLog: structured,
	})
	if !structured {
		return nil
	}
	_, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: cmd.CommandPath()})
	return err
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return prepareCommand(cmd)
	}
}
