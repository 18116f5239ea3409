package files

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/tKV/lib/library"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const ctrlC = 3

var playCmd = &cobra.Command{
	Use:   "play [name]",
	Short: "Plays a file of the library (space: pause/resume, q: quit)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := session.Context()
		h, err := lib.Open(ctx, args[0])
		cancel()
		if err != nil {
			return err
		}

		player, err := library.NewPlayer(playerCommand(), session.Config.Volume)
		if err != nil {
			return err
		}
		done, err := player.Play(h)
		if err != nil {
			return err
		}
		fmt.Printf("playing %s\n", h)

		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			<-done
			return nil
		}

		state, err := term.MakeRaw(fd)
		if err != nil {
			<-done
			return nil
		}
		defer func() { _ = term.Restore(fd, state) }()

		keys := make(chan byte)
		go readKeys(keys)

		for {
			select {
			case <-done:
				fmt.Print("finished\r\n")
				return nil
			case k, ok := <-keys:
				if !ok {
					<-done
					return nil
				}
				switch k {
				case ' ':
					paused, err := player.TogglePause()
					if err != nil {
						fmt.Printf("%v\r\n", err)
						continue
					}
					if paused {
						fmt.Print("paused\r\n")
					} else {
						fmt.Print("playing\r\n")
					}
				case 'q', ctrlC:
					return player.Stop()
				}
			}
		}
	},
}

// readKeys forwards single key presses of the raw terminal to keys
func readKeys(keys chan<- byte) {
	buf := make([]byte, 1)
	for {
		if n, err := os.Stdin.Read(buf); err != nil || n == 0 {
			close(keys)
			return
		}
		keys <- buf[0]
	}
}
