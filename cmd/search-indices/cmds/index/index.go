package index

import (
	"github.com/go-go-golems/glazed/pkg/cmds"
	si_cmds "github.com/go-go-golems/search-indices/pkg/cmds"
	"github.com/spf13/cobra"
)

func addCommand(parent *cobra.Command, command cmds.Command, err error) error {
	if err != nil {
		return err
	}
	cobraCommand, err := si_cmds.BuildCobraCommandWithSearchIndicesMiddlewares(command)
	if err != nil {
		return err
	}
	parent.AddCommand(cobraCommand)
	return nil
}

func AddToRootCommand(rootCmd *cobra.Command) error {
	indexCommand := &cobra.Command{
		Use:   "index",
		Short: "Manage search indices",
	}
	rootCmd.AddCommand(indexCommand)

	initCommand, err := NewInitCommand()
	if err := addCommand(indexCommand, initCommand, err); err != nil {
		return err
	}
	destroyCommand, err := NewDestroyCommand()
	if err := addCommand(indexCommand, destroyCommand, err); err != nil {
		return err
	}
	createCommand, err := NewCreateCommand()
	if err := addCommand(indexCommand, createCommand, err); err != nil {
		return err
	}
	deleteCommand, err := NewDeleteCommand()
	if err := addCommand(indexCommand, deleteCommand, err); err != nil {
		return err
	}
	putCommand, err := NewPutCommand()
	if err := addCommand(indexCommand, putCommand, err); err != nil {
		return err
	}
	updateCommand, err := NewUpdateCommand()
	if err := addCommand(indexCommand, updateCommand, err); err != nil {
		return err
	}
	listCommand, err := NewListCommand()
	if err := addCommand(indexCommand, listCommand, err); err != nil {
		return err
	}
	checkCommand, err := NewCheckCommand()
	if err := addCommand(indexCommand, checkCommand, err); err != nil {
		return err
	}

	syncCommand := &cobra.Command{
		Use:   "sync",
		Short: "Manage index syncing",
	}
	indexCommand.AddCommand(syncCommand)

	runCommand, err := NewSyncRunCommand()
	if err := addCommand(syncCommand, runCommand, err); err != nil {
		return err
	}
	rolloverCommand, err := NewSyncRolloverCommand()
	if err := addCommand(syncCommand, rolloverCommand, err); err != nil {
		return err
	}
	for _, action := range []struct{ name, short string }{
		{"init", "Initializes index syncing"},
		{"status", "Prints the status of index syncing"},
		{"cancel", "Cancels the current index syncing"},
	} {
		command, err := NewSyncNotImplementedCommand(action.name, action.short)
		if err := addCommand(syncCommand, command, err); err != nil {
			return err
		}
	}

	return nil
}
