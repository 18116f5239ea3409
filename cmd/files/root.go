package files

import (
	"strings"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/library"
	"github.com/spf13/cobra"
)

var (
	session *util.Session
	lib     *library.Library

	// FileCommands represents the audio library command group
	FileCommands = &cobra.Command{
		Use:                "files",
		Short:              "Manage and play the audio files of the library",
		PersistentPreRunE:  setupLibrary,
		PersistentPostRunE: closeLibrary,
	}
)

func init() {
	key := "player"
	FileCommands.PersistentFlags().String(key, library.DefaultPlayer, util.WrapString("Command used to play a file. {path} and {volume} (0-100) are replaced"))
	key = "volume"
	FileCommands.PersistentFlags().Float64(key, 1, util.WrapString("Playback volume between 0 and 1"))

	FileCommands.AddCommand(addCmd)
	FileCommands.AddCommand(listCmd)
	FileCommands.AddCommand(playCmd)
	FileCommands.AddCommand(rmCmd)
}

// setupLibrary opens the configured store and the library on top of it
func setupLibrary(cmd *cobra.Command, _ []string) (err error) {
	if session, err = util.NewSession(cmd); err != nil {
		return err
	}
	lib = library.New(session.Accessor, session.Codec)
	return nil
}

func closeLibrary(_ *cobra.Command, _ []string) error {
	return session.Close()
}

func playerCommand() []string {
	return strings.Fields(session.Config.Player)
}
