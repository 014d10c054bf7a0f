package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cernopendata/coldstore/coldtest"
	"github.com/cernopendata/coldstore/models"
	"github.com/cernopendata/coldstore/transfer"
)

// runs the CLI against a throwaway configuration under dir
func runCold(t *testing.T, dir string, args ...string) error {
	transfer.ResetRegistry()
	cfg := filepath.Join(dir, "cold.yaml")
	assert.Nil(t, os.WriteFile(cfg, coldtest.ConfigYAML(dir, 2, 2), 0644))
	rootCmd.SetArgs(append([]string{"--config", cfg}, args...))
	return rootCmd.Execute()
}

func storedLocations(t *testing.T) []models.Location {
	svcs, err := openServices()
	assert.Nil(t, err)
	defer svcs.Close()
	locations, err := svcs.Store.Locations()
	assert.Nil(t, err)
	return locations
}

func TestLocationAddWithFlags(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	err := runCold(t, dir, "location", "add",
		"--hot-path", "root://eos.example.org//eos/opendata",
		"--cold-path", "root://castor.example.org//castor/opendata",
		"--manager-class", "cp")
	assert.Nil(err)

	locations := storedLocations(t)
	assert.Len(locations, 1)
	assert.Equal("root://eos.example.org//eos/opendata", locations[0].HotPath)
	assert.Equal("root://castor.example.org//castor/opendata", locations[0].ColdPath)
	assert.Equal("cp", locations[0].ManagerClass)
}

func TestLocationAddPositional(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	err := runCold(t, dir, "location", "add",
		"root://eos.example.org//eos/opendata",
		"root://castor.example.org//castor/opendata", "fts")
	assert.Nil(err)

	locations := storedLocations(t)
	assert.Len(locations, 1)
	assert.Equal("fts", locations[0].ManagerClass)
}

func TestLocationAddIncomplete(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	locationHotPath, locationColdPath, locationManagerClass = "", "", ""
	err := runCold(t, dir, "location", "add",
		"--hot-path", "root://eos.example.org//eos/opendata")
	assert.NotNil(err)
	assert.Empty(storedLocations(t))
}

func TestClearHotAcceptsForce(t *testing.T) {
	assert := assert.New(t)

	flag := clearHotCmd.Flags().Lookup("force")
	assert.NotNil(flag)
}
