// Package cmd implements the command-line interface of tKV. It provides a
// hierarchical command structure for working with the store directly and with
// the audio library built on top of it.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value store operations (set, get, del, values, keys, perf)
//   - files: Commands for the audio library (add, list, play, rm)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through the environment with the prefix TKV_
// (e.g. TKV_ENGINE=sqlite); .env and .env.local are loaded on start.
//
// See tkv -help for a list of all commands.
package cmd
