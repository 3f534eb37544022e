package cmds

import (
	"os"
	"path/filepath"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	layers2 "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/middlewares"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/search-indices/pkg/cmds/layers"
	"github.com/spf13/cobra"
)

const defaultProfileName = "default"

// searchLayerSlugs are the only layers that read from the viper config file.
// Command flags such as --prefix or --dry-run have to be given explicitly.
var searchLayerSlugs = []string{
	layers.SearchConnectionSlug,
	layers.SearchSettingsSlug,
}

func BuildCobraCommandWithSearchIndicesMiddlewares(
	cmd cmds.Command,
	options ...cli.CobraOption,
) (*cobra.Command, error) {
	options_ := append([]cli.CobraOption{
		cli.WithCobraMiddlewaresFunc(GetCobraCommandSearchIndicesMiddlewares),
		cli.WithCobraShortHelpLayers(append([]string{layers2.DefaultSlug}, searchLayerSlugs...)...),
		cli.WithProfileSettingsLayer(),
	}, options...)

	return cli.BuildCobraCommandFromCommand(cmd, options_...)
}

// GetCobraCommandSearchIndicesMiddlewares returns the parameter sources of a
// search-indices command, highest precedence first:
//
//   - flags and positional arguments
//   - the --load-parameters-from-file file, if any
//   - the --profile entry of the profiles file
//     (~/.config/search-indices/profiles.yaml unless --profile-file is set)
//   - the viper config, restricted to the search-connection and
//     search-settings layers
//   - parameter defaults
func GetCobraCommandSearchIndicesMiddlewares(
	parsedCommandLayers *layers2.ParsedLayers,
	cmd *cobra.Command,
	args []string,
) ([]middlewares.Middleware, error) {
	commandSettings := &cli.CommandSettings{}
	err := parsedCommandLayers.InitializeStruct(cli.CommandSettingsSlug, commandSettings)
	if err != nil {
		return nil, err
	}

	profileSettings := &cli.ProfileSettings{}
	err = parsedCommandLayers.InitializeStruct(cli.ProfileSettingsSlug, profileSettings)
	if err != nil {
		return nil, err
	}

	middlewares_ := []middlewares.Middleware{
		middlewares.ParseFromCobraCommand(cmd,
			parameters.WithParseStepSource("cobra"),
		),
		middlewares.GatherArguments(args,
			parameters.WithParseStepSource("arguments"),
		),
	}

	if commandSettings.LoadParametersFromFile != "" {
		middlewares_ = append(middlewares_,
			middlewares.LoadParametersFromFile(commandSettings.LoadParametersFromFile,
				parameters.WithParseStepSource("parameter-file"),
			))
	}

	profile, err := profileMiddleware(profileSettings)
	if err != nil {
		return nil, err
	}

	middlewares_ = append(middlewares_,
		profile,
		middlewares.WrapWithWhitelistedLayers(
			searchLayerSlugs,
			middlewares.GatherFlagsFromViper(parameters.WithParseStepSource("viper")),
		),
		middlewares.SetFromDefaults(parameters.WithParseStepSource("defaults")),
	)

	return middlewares_, nil
}

// DefaultProfileFile is where profiles are read from when --profile-file is
// not given. A missing default file is not an error.
func DefaultProfileFile() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "search-indices", "profiles.yaml"), nil
}

func profileMiddleware(settings *cli.ProfileSettings) (middlewares.Middleware, error) {
	defaultFile, err := DefaultProfileFile()
	if err != nil {
		return nil, err
	}

	file := settings.ProfileFile
	if file == "" {
		file = defaultFile
	}
	profile := settings.Profile
	if profile == "" {
		profile = defaultProfileName
	}

	return middlewares.GatherFlagsFromProfiles(
		defaultFile,
		file,
		profile,
		parameters.WithParseStepSource("profiles"),
	), nil
}
