package version

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/hasskey/internal/appcontext"
)

func TestCollect(t *testing.T) {
	app := &appcontext.Mock{VersionFunc: func() string { return "1.0.0" }}
	info := Collect(app)
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "unknown", info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestVersionCommandJSON(t *testing.T) {
	var buf bytes.Buffer
	app := &appcontext.Mock{
		VersionFunc:      func() string { return "1.0.0" },
		OutputFormatFunc: func() string { return "json" },
		OutputWriter:     &buf,
	}

	cmd := NewCommand(app)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	var got Info
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, "test", got.BuiltBy)
}

func TestVersionCommandTable(t *testing.T) {
	var buf bytes.Buffer
	app := &appcontext.Mock{OutputWriter: &buf}

	require.NoError(t, NewCommand(app).Execute())
	assert.Contains(t, buf.String(), "Go Version")
	assert.Contains(t, buf.String(), "dev")
}
