package launcher

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides map[string]string
		want      []string
	}{
		{
			name: "no overrides",
			base: []string{"PATH=/bin", "HOME=/root"},
			want: []string{"PATH=/bin", "HOME=/root"},
		},
		{
			name:      "override replaces in place",
			base:      []string{"PATH=/bin", "HOME=/root", "LANG=C"},
			overrides: map[string]string{"HOME": "/home/job"},
			want:      []string{"PATH=/bin", "HOME=/home/job", "LANG=C"},
		},
		{
			name:      "new keys appended sorted",
			base:      []string{"PATH=/bin"},
			overrides: map[string]string{"ZED": "z", "ALPHA": "a", "MID": "m"},
			want:      []string{"PATH=/bin", "ALPHA=a", "MID=m", "ZED=z"},
		},
		{
			name: "duplicate inherited keys keep the first",
			base: []string{"A=1", "B=2", "A=3"},
			want: []string{"A=1", "B=2"},
		},
		{
			name:      "override of duplicated key",
			base:      []string{"A=1", "A=3"},
			overrides: map[string]string{"A": "job"},
			want:      []string{"A=job"},
		},
		{
			name:      "empty value override",
			base:      []string{"A=1"},
			overrides: map[string]string{"A": ""},
			want:      []string{"A="},
		},
		{
			name:      "value containing equals",
			base:      []string{"OPTS=a=b"},
			overrides: map[string]string{"NEW": "x=y"},
			want:      []string{"OPTS=a=b", "NEW=x=y"},
		},
		{
			name:      "entry without equals kept verbatim",
			base:      []string{"WEIRD", "A=1"},
			overrides: map[string]string{"A": "2"},
			want:      []string{"WEIRD", "A=2"},
		},
		{
			name:      "empty base",
			overrides: map[string]string{"B": "2", "A": "1"},
			want:      []string{"A=1", "B=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeEnv(tt.base, tt.overrides))
		})
	}
}

func TestMergeEnvDoesNotMutateInputs(t *testing.T) {
	base := []string{"A=1", "B=2"}
	overrides := map[string]string{"A": "x", "C": "3"}

	_ = MergeEnv(base, overrides)

	assert.Equal(t, []string{"A=1", "B=2"}, base)
	assert.Equal(t, map[string]string{"A": "x", "C": "3"}, overrides)
}

func TestEnvSources(t *testing.T) {
	t.Setenv("SPECLAUNCH_ENV_TEST", "present")
	assert.Contains(t, OSEnv{}.Environ(), "SPECLAUNCH_ENV_TEST=present")

	static := StaticEnv{"A=1"}
	got := static.Environ()
	got[0] = "A=changed"
	assert.Equal(t, "A=1", static[0])
}

func TestEnterWorkDir(t *testing.T) {
	before, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()

	restore, err := EnterWorkDir(dir)
	require.NoError(t, err)

	now, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, evalDir(t, dir), evalDir(t, now))

	require.NoError(t, restore())
	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEnterWorkDirEmptyIsNoop(t *testing.T) {
	before, err := os.Getwd()
	require.NoError(t, err)

	restore, err := EnterWorkDir("")
	require.NoError(t, err)
	require.NoError(t, restore())

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEnterWorkDirFailure(t *testing.T) {
	before, err := os.Getwd()
	require.NoError(t, err)

	restore, err := EnterWorkDir("/definitely/not/here")
	assert.Nil(t, restore)

	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "chdir", lerr.Op)
	assert.Equal(t, "/definitely/not/here", lerr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "chdir /definitely/not/here: no such file or directory", err.Error())

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
