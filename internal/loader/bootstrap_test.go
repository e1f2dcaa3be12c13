package loader

import (
	"strings"
	"testing"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillShell(t *testing.T) {
	out, err := fillShell(`function() { 'prototypo.js'; go(); }`, `var x = "$1 $&";`)
	require.NoError(t, err)
	assert.Equal(t, `(function() { var x = "$1 $&"; go(); })();//`, out)

	_, err = fillShell(`function() {}`, "x")
	assert.ErrorIs(t, err, core.ErrBootstrapTemplate)
	_, err = fillShell(`function() { 'prototypo.js'; 'prototypo.js'; }`, "x")
	assert.ErrorIs(t, err, core.ErrBootstrapTemplate)
}

func TestBuildScript(t *testing.T) {
	script, err := BuildScript(`export default { parametricFont(src) { return src; } };`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(script, "(function() {"))
	assert.True(t, strings.HasSuffix(script, ")();//"))
	assert.Contains(t, script, "module.exports")
	assert.NotContains(t, script, "var globalThis")
	assert.NotContains(t, script, engineMarker)
	assert.Equal(t, 1, strings.Count(workerShell, engineMarker))
}

func TestNormalizeEngineKeepsPlainScripts(t *testing.T) {
	code, err := NormalizeEngine("var prototypo = { parametricFont: function(src) { return src; } };")
	require.NoError(t, err)
	assert.Contains(t, code, "var prototypo =")
	assert.NotContains(t, code, "=>")
}

func TestNormalizeEngineSyntaxError(t *testing.T) {
	_, err := NormalizeEngine(`export default {`)
	var pe *core.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "engine", pe.What)
	assert.Contains(t, pe.Error(), "prototypo.js:")
}
