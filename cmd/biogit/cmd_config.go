package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "config [<key> [<value>]]",
		Short: "Get or set repository configuration",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if list {
				for _, key := range cfg.Keys() {
					val, _ := cfg.Get(key)
					fmt.Fprintf(out, "%s=%s\n", key, val)
				}
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("config: <key> or --list is required")
			}
			key := args[0]

			if len(args) == 1 {
				val, ok := cfg.Get(key)
				if !ok {
					return fmt.Errorf("config: key %q is not set", key)
				}
				fmt.Fprintln(out, val)
				return nil
			}

			cfg.Set(key, args[1])
			return r.WriteConfig(cfg)
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list every configured key")
	return cmd
}
