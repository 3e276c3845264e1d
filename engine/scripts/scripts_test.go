package scripts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIncludesUtilitiesAndArgs(t *testing.T) {
	script, err := Build("set_block_field", map[string]any{
		"blockId":   "abc",
		"fieldName": "VARIABLE",
		"value":     "score",
	})
	require.NoError(t, err)
	assert.Contains(t, script, "function bbVM()")
	assert.Contains(t, script, `"blockId":"abc"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(script), ")"))
}

func TestBuildNoArgs(t *testing.T) {
	script, err := Build("run_project")
	require.NoError(t, err)
	assert.Contains(t, script, "greenFlag")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(script), "()"))
}

func TestBuildUnknownOperation(t *testing.T) {
	_, err := Build("does_not_exist")
	require.Error(t, err)
}

func TestAllOperationsPresent(t *testing.T) {
	ops := []string{
		"run_project", "stop_project", "select_category", "select_sprite",
		"select_stage", "add_variable", "add_list", "add_block",
		"get_blocks_pseudocode", "get_blocks_structure", "set_block_field",
		"connect_blocks", "detach_blocks", "delete_block",
		"observe_elements", "query_elements", "custom_js",
	}
	for _, op := range ops {
		_, err := Build(op)
		assert.NoError(t, err, op)
	}
}
