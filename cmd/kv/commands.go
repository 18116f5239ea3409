package kv

import (
	"fmt"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := session.Context()
			defer cancel()

			key, value := args[0], []byte(args[1])
			if _, err := util.Retry(ctx, session.Config.Retries, func() (struct{}, error) {
				return store.Set(session.Accessor, key, value).Await(ctx)
			}); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := session.Context()
			defer cancel()

			key := args[0]
			l, err := util.Retry(ctx, session.Config.Retries, func() (db.Lookup, error) {
				return store.Get(session.Accessor, key).Await(ctx)
			})
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", key, l.Found, l.Value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := session.Context()
			defer cancel()

			key := args[0]
			if _, err := util.Retry(ctx, session.Config.Retries, func() (struct{}, error) {
				return store.Delete(session.Accessor, key).Await(ctx)
			}); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	valuesCmd = &cobra.Command{
		Use:   "values",
		Short: "Prints all values of the collection in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := session.Context()
			defer cancel()

			values, err := util.Retry(ctx, session.Config.Retries, func() ([][]byte, error) {
				return store.Values(session.Accessor).Await(ctx)
			})
			if err != nil {
				return err
			}
			for _, v := range values {
				fmt.Printf("%s\n", v)
			}
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Prints all keys of the collection in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := session.Context()
			defer cancel()

			keys, err := util.Retry(ctx, session.Config.Retries, func() ([]string, error) {
				return store.Keys(session.Accessor).Await(ctx)
			})
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
)
