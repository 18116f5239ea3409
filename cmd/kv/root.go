package kv

import (
	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/spf13/cobra"
)

var (
	session *util.Session

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupSession,
		PersistentPostRunE: closeSession,
	}
)

func init() {
	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(valuesCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupSession opens the configured store
func setupSession(cmd *cobra.Command, _ []string) (err error) {
	session, err = util.NewSession(cmd)
	return err
}

func closeSession(_ *cobra.Command, _ []string) error {
	return session.Close()
}
