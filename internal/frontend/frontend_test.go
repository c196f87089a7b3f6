package frontend

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/validator"
)

func testdata(name string) string {
	return filepath.Join("testdata", name)
}

func newLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := New(nil)
	require.NoError(t, err)
	return l
}

func TestExtractYAML(t *testing.T) {
	d, err := newLoader(t).Extract(testdata("counter.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "counter", d.Top)
	require.Len(t, d.Modules, 1)
	mod := d.Modules[0]
	assert.Equal(t, 1, mod.Line)
	require.Len(t, mod.Ports, 2)
	assert.Equal(t, hdl.Input, mod.Ports[1].Direction)
	assert.Equal(t, 8, mod.Ports[1].Width)
	require.Len(t, mod.Blocks, 1)
	body := mod.Blocks[0].Body
	assert.Equal(t, hdl.StmtNonBlocking, body.Kind)
	assert.Equal(t, "(cnt + in)", body.RHS.String())
	assert.Equal(t, "8'd0", mod.Decl("cnt").Init.Value)
}

func TestExtractJSON(t *testing.T) {
	d, err := newLoader(t).Extract(testdata("watcher.json"))
	require.NoError(t, err)

	require.Len(t, d.Modules, 1)
	body := d.Modules[0].Blocks[0].Body
	assert.Equal(t, hdl.StmtIf, body.Kind)
	assert.Equal(t, "$error", body.Then.Expr.Name)
	assert.Nil(t, body.Else)
}

func TestLoadMergesDocuments(t *testing.T) {
	d, err := newLoader(t).Load([]string{testdata("counter.yaml"), testdata("watcher.json")}, "")
	require.NoError(t, err)

	assert.Equal(t, "counter", d.Top)
	assert.NotNil(t, d.Module("counter"))
	assert.NotNil(t, d.Module("watcher"))
}

func TestLoadTopOverride(t *testing.T) {
	d, err := newLoader(t).Load([]string{testdata("counter.yaml"), testdata("watcher.json")}, "watcher")
	require.NoError(t, err)
	assert.Equal(t, "watcher", d.Top)

	_, err = newLoader(t).Load([]string{testdata("watcher.json")}, "nowhere")
	var fe *FrontEndError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "nowhere")
}

func TestLoadRejectsConflictingTops(t *testing.T) {
	_, err := newLoader(t).Load([]string{testdata("counter.yaml"), testdata("watcher.json"), testdata("other_top.yaml")}, "")
	var fe *FrontEndError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, testdata("other_top.yaml"), fe.File)
}

func TestLoadRejectsDuplicateModules(t *testing.T) {
	_, err := newLoader(t).Load([]string{testdata("watcher.json"), testdata("duplicate.yaml")}, "")
	var fe *FrontEndError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, testdata("duplicate.yaml"), fe.File)
	assert.Contains(t, err.Error(), "duplicate module watcher")
}

func TestLoadRejectsUnknownInstance(t *testing.T) {
	_, err := newLoader(t).Load([]string{testdata("counter.yaml")}, "")
	var fe *FrontEndError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "unknown module watcher")
}

func TestSchemaViolationIsFrontEndError(t *testing.T) {
	_, err := newLoader(t).Extract(testdata("bad_direction.yaml"))
	var fe *FrontEndError
	require.True(t, errors.As(err, &fe))
	var ve *validator.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.NotEmpty(t, ve.Errs)
}

func TestMissingFileAndEmptyDocument(t *testing.T) {
	l := newLoader(t)
	_, err := l.Extract(testdata("missing.yaml"))
	var fe *FrontEndError
	require.True(t, errors.As(err, &fe))

	_, err = l.Decode([]byte(""), "empty.yaml")
	assert.ErrorContains(t, err, "empty design document")

	_, err = l.Load(nil, "")
	assert.Error(t, err)
}
