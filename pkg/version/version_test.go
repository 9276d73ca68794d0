package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "Version should follow semver, got: %s", Version)
}

func TestString_IncludesBuildDetails(t *testing.T) {
	str := String()

	assert.Contains(t, str, Program)
	assert.Contains(t, str, Version)
	assert.Contains(t, str, "commit: "+Commit)
	assert.Contains(t, str, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestGetInfo_MarshalsToJSON(t *testing.T) {
	// Given: overridden link-time values
	oldVersion, oldCommit := Version, Commit
	Version, Commit = "1.2.3", "abc1234"
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	// When
	raw, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	// Then
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "reposcout", decoded["program"])
	assert.Equal(t, "1.2.3", decoded["version"])
	assert.Equal(t, "abc1234", decoded["commit"])
	assert.Equal(t, runtime.GOARCH, decoded["arch"])
}
