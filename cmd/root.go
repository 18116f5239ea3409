package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/tKV/cmd/files"
	"github.com/ValentinKolb/tKV/cmd/kv"
	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "tkv",
		Short: "transactional key-value store",
		Long: fmt.Sprintf(`tKV (v%s)

An asynchronous key-value store on top of a transactional,
callback based storage engine, with an audio file library
built on it.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tKV v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(files.FileCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
