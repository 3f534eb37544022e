package cmds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/glazed/pkg/cli"
	layers2 "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/middlewares"
	"github.com/go-go-golems/search-indices/pkg/cmds/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runProfile(t *testing.T, settings *cli.ProfileSettings) (*layers2.ParsedLayers, error) {
	t.Helper()
	connection, err := layers.NewConnectionParameterLayer()
	require.NoError(t, err)

	m, err := profileMiddleware(settings)
	require.NoError(t, err)

	parsed := layers2.NewParsedLayers()
	err = middlewares.ExecuteMiddlewares(
		layers2.NewParameterLayers(layers2.WithLayers(connection)),
		parsed,
		m,
	)
	return parsed, err
}

func TestDefaultProfileFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	file, err := DefaultProfileFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "search-indices", "profiles.yaml"), file)
}

func TestProfileMiddlewareMissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := runProfile(t, &cli.ProfileSettings{})
	assert.NoError(t, err)
}

func TestProfileMiddlewareMissingExplicitFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := runProfile(t, &cli.ProfileSettings{
		ProfileFile: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	assert.Error(t, err)
}

func TestProfileMiddlewareLoadsSelectedProfile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	profiles := `
default:
  search-connection:
    username: reader
staging:
  search-connection:
    username: admin
`
	file := filepath.Join(dir, "search-indices", "profiles.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(profiles), 0o600))

	parsed, err := runProfile(t, &cli.ProfileSettings{})
	require.NoError(t, err)
	settings, err := layers.NewConnectionSettingsFromParsedLayers(parsed)
	require.NoError(t, err)
	assert.Equal(t, "reader", settings.Username)

	parsed, err = runProfile(t, &cli.ProfileSettings{Profile: "staging"})
	require.NoError(t, err)
	settings, err = layers.NewConnectionSettingsFromParsedLayers(parsed)
	require.NoError(t, err)
	assert.Equal(t, "admin", settings.Username)

	_, err = runProfile(t, &cli.ProfileSettings{Profile: "prod"})
	assert.Error(t, err)
}
