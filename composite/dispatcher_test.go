package composite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/blockbench/engine/enginetest"
	"github.com/BaSui01/blockbench/types"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *enginetest.FakePage) {
	page := enginetest.NewFakePage()
	d := NewDispatcher(page, "sess-1", zaptest.NewLogger(t))
	return d, page
}

// scriptResult keys responses off a distinctive substring of each
// operation's embedded source.
func scriptResult(results map[string]any) func(string) (any, error) {
	return func(script string) (any, error) {
		for marker, result := range results {
			if strings.Contains(script, marker) {
				return result, nil
			}
		}
		return map[string]any{"success": true}, nil
	}
}

func pseudocodeResult() map[string]any {
	return map[string]any{
		"success":    true,
		"pseudocode": "(1) when flag clicked\n(2) move (10) steps",
		"idxToBlock": map[string]any{
			"1": map[string]any{"id": "b1", "opcode": "event_whenflagclicked"},
			"2": map[string]any{"id": "b2", "opcode": "motion_movesteps"},
		},
		"valueToIdMappings": map[string]any{
			"variables": map[string]any{"score": "var-1"},
		},
		"targetName": "Sprite1",
	}
}

func TestExecuteMissingAPI(t *testing.T) {
	d, page := newTestDispatcher(t)
	env := d.Execute(context.Background(), types.CompositeRequest{})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrInvalidArg, env.Error.Code)
	assert.Empty(t, page.CallOps())
}

func TestExecuteUnsupportedAPI(t *testing.T) {
	d, page := newTestDispatcher(t)
	env := d.Execute(context.Background(), types.CompositeRequest{API: "teleport"})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrUnsupported, env.Error.Code)
	assert.Equal(t, "Unsupported api: teleport", env.Error.Message)
	assert.Empty(t, page.CallOps())
}

func TestRunProject(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.EvaluateFunc = scriptResult(map[string]any{
		"greenFlag": map[string]any{"success": true, "running": true},
	})

	env := d.Execute(context.Background(), types.CompositeRequest{API: "run_project"})
	require.True(t, env.Success)
	assert.Equal(t, map[string]any{"running": true}, env.Data)
	assert.Equal(t, "sess-1", env.Meta.SessionID)
	// run_project is not in the executed-args catalog.
	assert.Empty(t, env.ExecutedAction.Args)
}

func TestSelectSpriteMissingName(t *testing.T) {
	d, page := newTestDispatcher(t)
	env := d.Execute(context.Background(), types.CompositeRequest{API: "select_sprite"})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrInvalidArg, env.Error.Code)
	assert.Empty(t, page.CallOps(), "validation failures must not reach the page")
}

func TestSelectSpriteEchoesName(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.EvaluateFunc = scriptResult(nil)

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "select_sprite", Args: map[string]any{"name": "Cat"},
	})
	require.True(t, env.Success)
	assert.Equal(t, map[string]any{"name": "Cat"}, env.ExecutedAction.Args)
}

func TestSelectCategoryArgsFilteredFromCatalog(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.EvaluateFunc = scriptResult(nil)

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "select_category", Args: map[string]any{"category_name": "Motion"},
	})
	require.True(t, env.Success)
	assert.Equal(t, map[string]any{"category_name": "Motion"}, env.RequestedAction.Args)
	assert.Empty(t, env.ExecutedAction.Args)
}

func TestAddVariable(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.EvaluateFunc = scriptResult(map[string]any{
		"createVariable": map[string]any{
			"success": true, "id": "var-9", "name": "score", "scope": "all", "cloud": false,
		},
	})

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "add_variable", Args: map[string]any{"name": "score", "scope": "all"},
	})
	require.True(t, env.Success)
	assert.Equal(t, map[string]any{"name": "score", "scope": "all"}, env.ExecutedAction.Args)

	created, ok := env.Data["created"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "var-9", created["id"])
}

func TestAddVariableSpriteScope(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.EvaluateFunc = scriptResult(map[string]any{
		"createVariable": map[string]any{
			"success": true, "id": "var-3", "name": "hp", "scope": "sprite", "cloud": false,
		},
	})

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "add_variable", Args: map[string]any{"name": "hp", "scope": "sprite"},
	})
	require.True(t, env.Success)
	assert.Equal(t, map[string]any{"name": "hp", "scope": "sprite"}, env.ExecutedAction.Args)
}

func TestAddVariableScopeValidation(t *testing.T) {
	d, page := newTestDispatcher(t)

	for _, args := range []map[string]any{
		{"name": "score"},
		{"name": "score", "scope": "local"},
		{"name": "score", "scope": "everywhere"},
	} {
		env := d.Execute(context.Background(), types.CompositeRequest{
			API: "add_variable", Args: args,
		})
		require.False(t, env.Success)
		assert.Equal(t, types.ErrInvalidArg, env.Error.Code)
		assert.Equal(t, "'scope' must be 'sprite' or 'all'", env.Error.Message)
	}
	assert.Empty(t, page.CallOps())
}

func TestAddListScopeValidation(t *testing.T) {
	d, _ := newTestDispatcher(t)
	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "add_list", Args: map[string]any{"name": "items", "scope": "stage"},
	})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrInvalidArg, env.Error.Code)
	assert.Equal(t, "'scope' must be 'sprite' or 'all'", env.Error.Message)
}

func TestGetBlocksPseudocodeSeedsCache(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.EvaluateFunc = scriptResult(map[string]any{
		"valueToIdMappings": pseudocodeResult(),
	})

	env := d.Execute(context.Background(), types.CompositeRequest{API: "get_blocks_pseudocode"})
	require.True(t, env.Success)
	assert.Contains(t, env.Data, "pseudocode")
	assert.True(t, d.Cache().Present())

	ref, terr := d.Cache().Resolve(2)
	require.Nil(t, terr)
	assert.Equal(t, "b2", ref.ID)
	assert.Equal(t, "var-1", d.Cache().Translate("score", "VARIABLE"))
}

func TestSetBlockFieldRequiresCache(t *testing.T) {
	d, page := newTestDispatcher(t)
	env := d.Execute(context.Background(), types.CompositeRequest{
		API:  "set_block_field",
		Args: map[string]any{"blockIndex": float64(1), "fieldName": "STEPS", "value": "20"},
	})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrInvalidState, env.Error.Code)
	assert.Equal(t, "No cached block data. Call get_blocks_pseudocode first.", env.Error.Message)
	assert.Empty(t, page.CallOps())
}

func TestSetBlockFieldTranslatesValueAndKeepsCache(t *testing.T) {
	d, page := newTestDispatcher(t)
	d.Cache().Rebuild(map[int]BlockRef{1: {ID: "b1", Opcode: "data_setvariableto"}})
	d.Cache().SetValueMaps(&ValueMaps{Variables: map[string]string{"score": "var-1"}})
	var sawScript string
	page.EvaluateFunc = func(script string) (any, error) {
		sawScript = script
		return map[string]any{"success": true, "updated": true}, nil
	}

	env := d.Execute(context.Background(), types.CompositeRequest{
		API:  "set_block_field",
		Args: map[string]any{"blockIndex": float64(1), "fieldName": "VARIABLE", "value": "score"},
	})
	require.True(t, env.Success)
	assert.Contains(t, sawScript, `"var-1"`, "value must be translated before reaching the page")
	assert.Equal(t, "b1", env.Data["blockId"])
	assert.Equal(t, "var-1", env.ExecutedAction.Args["value"])

	// Field edits leave the index snapshot intact.
	assert.True(t, d.Cache().Present())
}

func TestBlockIndexMustBePositive(t *testing.T) {
	d, page := newTestDispatcher(t)
	d.Cache().Rebuild(map[int]BlockRef{1: {ID: "b1"}})

	for _, idx := range []float64{0, -1} {
		env := d.Execute(context.Background(), types.CompositeRequest{
			API:  "set_block_field",
			Args: map[string]any{"blockIndex": idx, "fieldName": "STEPS", "value": "20"},
		})
		require.False(t, env.Success)
		assert.Equal(t, types.ErrInvalidArg, env.Error.Code)
		assert.Equal(t, "'blockIndex' must be a positive integer", env.Error.Message)
	}

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "connect_blocks",
		Args: map[string]any{
			"sourceBlockIndex": float64(0),
			"targetBlockIndex": float64(1),
			"placement":        map[string]any{"kind": "after"},
		},
	})
	require.False(t, env.Success)
	assert.Equal(t, "'sourceBlockIndex' must be a positive integer", env.Error.Message)

	env = d.Execute(context.Background(), types.CompositeRequest{
		API: "delete_block", Args: map[string]any{"index": float64(-2)},
	})
	require.False(t, env.Success)
	assert.Equal(t, "'blockIndex' must be a positive integer", env.Error.Message)

	assert.Empty(t, page.CallOps())
	assert.True(t, d.Cache().Present(), "rejected indices must not invalidate")
}

func TestSetBlockFieldUnknownIndex(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Cache().Rebuild(map[int]BlockRef{1: {ID: "b1"}})

	env := d.Execute(context.Background(), types.CompositeRequest{
		API:  "set_block_field",
		Args: map[string]any{"blockIndex": float64(4), "fieldName": "STEPS", "value": "20"},
	})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrNotFound, env.Error.Code)
	assert.Equal(t, "Block not found at index: 4", env.Error.Message)
}

func TestAddBlockInvalidatesCache(t *testing.T) {
	d, page := newTestDispatcher(t)
	d.Cache().Rebuild(map[int]BlockRef{1: {ID: "b1"}})
	page.EvaluateFunc = scriptResult(map[string]any{
		"newBlock": map[string]any{"success": true, "blockId": "b9", "blockType": "motion_movesteps"},
	})

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "add_block", Args: map[string]any{"blockType": "motion_movesteps"},
	})
	require.True(t, env.Success)
	assert.Equal(t, "b9", env.Data["blockId"])
	assert.Equal(t, false, env.Data["connected"])
	assert.False(t, d.Cache().Present())
}

func TestConnectBlocks(t *testing.T) {
	d, page := newTestDispatcher(t)
	d.Cache().Rebuild(map[int]BlockRef{
		1: {ID: "b1"},
		2: {ID: "b2"},
	})
	page.EvaluateFunc = scriptResult(map[string]any{
		"nextConnection": map[string]any{"success": true, "connected": true},
	})

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "connect_blocks",
		Args: map[string]any{
			"sourceBlockIndex": float64(2),
			"targetBlockIndex": float64(1),
			"placement":        map[string]any{"kind": "after"},
		},
	})
	require.True(t, env.Success)
	assert.Equal(t, 2, env.ExecutedAction.Args["sourceBlockIndex"])
	assert.False(t, d.Cache().Present())
}

func TestConnectBlocksPlacementValidation(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Cache().Rebuild(map[int]BlockRef{1: {ID: "b1"}, 2: {ID: "b2"}})

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "connect_blocks",
		Args: map[string]any{
			"sourceBlockIndex": float64(1),
			"targetBlockIndex": float64(2),
			"placement":        map[string]any{"kind": "value_into"},
		},
	})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrInvalidArg, env.Error.Code)
	assert.Contains(t, env.Error.Message, "inputName")
	assert.True(t, d.Cache().Present(), "failed connect must not invalidate")
}

func TestDeleteBlock(t *testing.T) {
	d, page := newTestDispatcher(t)
	d.Cache().Rebuild(map[int]BlockRef{3: {ID: "b3", Opcode: "motion_turnright"}})
	page.EvaluateFunc = scriptResult(map[string]any{
		"dispose": map[string]any{
			"success":      true,
			"deletedBlock": map[string]any{"id": "b3", "opcode": "motion_turnright"},
		},
	})

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "delete_block", Args: map[string]any{"index": float64(3)},
	})
	require.True(t, env.Success)
	assert.Equal(t, true, env.Data["deleted"])
	assert.Equal(t, 3, env.Data["index"])
	assert.Equal(t, "b3", env.Data["blockId"])
	info, ok := env.Data["blockInfo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "motion_turnright", info["opcode"])
	assert.False(t, d.Cache().Present())
}

func TestDetachBlocksInvalidatesCache(t *testing.T) {
	d, page := newTestDispatcher(t)
	d.Cache().Rebuild(map[int]BlockRef{2: {ID: "b2"}})
	page.EvaluateFunc = scriptResult(map[string]any{
		"unplug": map[string]any{"success": true, "detached": true},
	})

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "detach_blocks", Args: map[string]any{"blockIndex": float64(2)},
	})
	require.True(t, env.Success)
	assert.Equal(t, "b2", env.Data["blockId"])
	assert.False(t, d.Cache().Present())
}

func TestScriptFailureSurfacesCode(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.EvaluateFunc = scriptResult(map[string]any{
		"setEditingTarget": map[string]any{
			"success": false,
			"error":   map[string]any{"code": "NOT_FOUND", "message": "Sprite not found: Bob"},
		},
	})

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "select_sprite", Args: map[string]any{"name": "Bob"},
	})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrNotFound, env.Error.Code)
	assert.Equal(t, "Sprite not found: Bob", env.Error.Message)
}

func TestEvaluateErrorIsRuntime(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.Fail = map[string]error{"evaluate": errors.New("target crashed")}

	env := d.Execute(context.Background(), types.CompositeRequest{API: "run_project"})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrRuntime, env.Error.Code)
	assert.Contains(t, env.Error.Message, "target crashed")
}

func TestCustomJSErrorIsJavaScript(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.Fail = map[string]error{"evaluate": errors.New("SyntaxError: unexpected token")}

	env := d.Execute(context.Background(), types.CompositeRequest{
		API: "custom_js", Args: map[string]any{"fn": "() => { return 1; }"},
	})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrJavaScript, env.Error.Code)
}

func TestMalformedScriptResponse(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.EvaluateFunc = func(string) (any, error) { return "just a string", nil }

	env := d.Execute(context.Background(), types.CompositeRequest{API: "run_project"})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrMalformedResponse, env.Error.Code)
}

func TestDoneIsTerminalNoOp(t *testing.T) {
	d, page := newTestDispatcher(t)
	env := d.Execute(context.Background(), types.CompositeRequest{API: "done"})
	require.True(t, env.Success)
	assert.Empty(t, page.CallOps())
	assert.Equal(t, map[string]any{"acknowledged": true}, env.Data)
}

// Full describe, edit, mutate, re-describe flow against a scripted page.
func TestEditFlowInvalidationCycle(t *testing.T) {
	d, page := newTestDispatcher(t)
	page.EvaluateFunc = scriptResult(map[string]any{
		"valueToIdMappings": pseudocodeResult(),
		"setValue":          map[string]any{"success": true, "updated": true},
		"dispose": map[string]any{
			"success":      true,
			"deletedBlock": map[string]any{"id": "b2", "opcode": "motion_movesteps"},
		},
	})

	env := d.Execute(context.Background(), types.CompositeRequest{API: "get_blocks_pseudocode"})
	require.True(t, env.Success)

	env = d.Execute(context.Background(), types.CompositeRequest{
		API:  "set_block_field",
		Args: map[string]any{"blockIndex": float64(2), "fieldName": "STEPS", "value": "20"},
	})
	require.True(t, env.Success)

	env = d.Execute(context.Background(), types.CompositeRequest{
		API: "delete_block", Args: map[string]any{"blockIndex": float64(2)},
	})
	require.True(t, env.Success)

	// Indices from the old snapshot are rejected until re-described.
	env = d.Execute(context.Background(), types.CompositeRequest{
		API:  "set_block_field",
		Args: map[string]any{"blockIndex": float64(1), "fieldName": "STEPS", "value": "20"},
	})
	require.False(t, env.Success)
	assert.Equal(t, types.ErrInvalidState, env.Error.Code)

	env = d.Execute(context.Background(), types.CompositeRequest{API: "get_blocks_pseudocode"})
	require.True(t, env.Success)
	assert.True(t, d.Cache().Present())
}
