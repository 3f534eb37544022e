package main

import (
	"fmt"
	"os"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	cli_cmds "github.com/go-go-golems/search-indices/cmd/search-indices/cmds"
	"github.com/go-go-golems/search-indices/cmd/search-indices/cmds/index"
	si_cmds "github.com/go-go-golems/search-indices/pkg/cmds"
	"github.com/go-go-golems/search-indices/pkg/doc"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "search-indices",
	Short: "Manage the indices, aliases and templates of a search cluster",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		err := logging.InitLoggerFromViper()
		cobra.CheckErr(err)
	},
}

func main() {
	helpSystem, err := initRootCmd()
	cobra.CheckErr(err)

	err = initAllCommands(helpSystem)
	cobra.CheckErr(err)

	err = rootCmd.Execute()
	cobra.CheckErr(err)
}

func initRootCmd() (*help.HelpSystem, error) {
	helpSystem := help.NewHelpSystem()
	err := doc.AddDocToHelpSystem(helpSystem)
	cobra.CheckErr(err)

	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	err = clay.InitViper("search-indices", rootCmd)
	cobra.CheckErr(err)
	err = logging.InitLoggerFromViper()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logger: %s\n", err)
		os.Exit(1)
	}

	return helpSystem, nil
}

func initAllCommands(_ *help.HelpSystem) error {
	err := index.AddToRootCommand(rootCmd)
	if err != nil {
		return err
	}

	searchCommand, err := cli_cmds.NewSearchCommand()
	if err != nil {
		return err
	}
	searchCmd, err := si_cmds.BuildCobraCommandWithSearchIndicesMiddlewares(searchCommand)
	if err != nil {
		return err
	}
	rootCmd.AddCommand(searchCmd)

	infoCommand, err := cli_cmds.NewInfoCommand()
	if err != nil {
		return err
	}
	infoCmd, err := si_cmds.BuildCobraCommandWithSearchIndicesMiddlewares(infoCommand)
	if err != nil {
		return err
	}
	rootCmd.AddCommand(infoCmd)

	return nil
}
