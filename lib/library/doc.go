// Package library implements a small audio library on top of the store: it
// remembers references (FileHandle) to .mp3 and .wav files, lists them, checks
// that they are still readable and plays them through an external command.
//
// The handles live in the default collection of a store.Registry ("files" in
// "files-store"), keyed by file name:
//
//	registry := store.NewRegistry(engine)
//	lib := library.New(registry.Default(), codec.NewJSONCodec())
//	handles, err := lib.Add(ctx, "song.mp3")
//
// Player pauses the command with SIGSTOP/SIGCONT, which is only available on unix.
package library
