package main

import (
	"github.com/spf13/cobra"
)

func newConfirmCmd(global *globalFlags) *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "confirm <task-id>",
		Short: "Create the platform draft for a previewed task",
		Long: `Confirm uploads any remaining media and creates the draft. Confirming a
published task prints the existing draft id. Tasks only survive between
invocations with a persistent store, e.g. --set storage.provider=bun.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := global.loadModule()
			if err != nil {
				return err
			}
			defer module.Close()

			confirm := module.Confirm
			if async {
				confirm = module.ConfirmAsync
			}
			snap, err := confirm(cmd.Context(), args[0])
			return writeSnapshot(cmd.OutOrStdout(), snap, err)
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "queue the confirm phase and print the task without waiting")
	return cmd
}

func newStatusCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Print the stored state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := global.loadModule()
			if err != nil {
				return err
			}
			defer module.Close()

			snap, err := module.Status(cmd.Context(), args[0])
			return writeSnapshot(cmd.OutOrStdout(), snap, err)
		},
	}
}
