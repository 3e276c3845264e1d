package composite

import (
	"strconv"
	"strings"
	"sync"

	"github.com/BaSui01/blockbench/types"
)

// BlockRef identifies one block in the structural snapshot.
type BlockRef struct {
	ID     string `json:"id"`
	Opcode string `json:"opcode"`
}

// ValueMaps holds the human-readable-name to VM-id maps used to translate
// menu field values.
type ValueMaps struct {
	Variables      map[string]string `json:"variables"`
	StageVariables map[string]string `json:"stageVariables"`
	Lists          map[string]string `json:"lists"`
	StageLists     map[string]string `json:"stageLists"`
	Sounds         map[string]string `json:"sounds"`
	Sprites        map[string]string `json:"sprites"`
	SpecialOptions map[string]string `json:"specialOptions"`
}

// IndexCache is the session-scoped index-to-block snapshot. It has two
// explicit states: absent (no structural snapshot taken, or invalidated by
// a mutation) and present. Value maps are tracked independently; they stay
// usable across structural invalidation because names do not move when
// blocks do.
type IndexCache struct {
	mu         sync.Mutex
	present    bool
	idxToBlock map[int]BlockRef
	valueMaps  *ValueMaps
}

// NewIndexCache starts absent.
func NewIndexCache() *IndexCache {
	return &IndexCache{}
}

// Rebuild installs a fresh index snapshot and marks the cache present.
func (c *IndexCache) Rebuild(blocks map[int]BlockRef) {
	copied := make(map[int]BlockRef, len(blocks))
	for k, v := range blocks {
		copied[k] = v
	}
	c.mu.Lock()
	c.idxToBlock = copied
	c.present = true
	c.mu.Unlock()
}

// SetValueMaps installs the value translation maps.
func (c *IndexCache) SetValueMaps(maps *ValueMaps) {
	c.mu.Lock()
	c.valueMaps = maps
	c.mu.Unlock()
}

// Invalidate drops the index snapshot. Value maps are kept.
func (c *IndexCache) Invalidate() {
	c.mu.Lock()
	c.present = false
	c.idxToBlock = nil
	c.mu.Unlock()
}

// Present reports whether an index snapshot is installed.
func (c *IndexCache) Present() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.present
}

// Resolve maps a 1-based block index to its block reference. An absent
// cache and a missing index are distinct failures: the former asks the
// caller to re-describe the structure, the latter means the index was
// never valid for the current snapshot.
func (c *IndexCache) Resolve(idx int) (BlockRef, *types.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.present {
		return BlockRef{}, types.NewError(types.ErrInvalidState,
			"No cached block data. Call get_blocks_pseudocode first.")
	}
	ref, ok := c.idxToBlock[idx]
	if !ok {
		return BlockRef{}, types.NewErrorf(types.ErrNotFound, "Block not found at index: %d", idx)
	}
	return ref, nil
}

// Translate maps a human-readable field value to its VM id based on the
// field being set. Field names match case-insensitively; unknown values
// and unmapped fields pass through unchanged.
func (c *IndexCache) Translate(value, fieldName string) string {
	c.mu.Lock()
	maps := c.valueMaps
	c.mu.Unlock()
	if maps == nil {
		return value
	}

	lookup := func(m map[string]string) (string, bool) {
		if m == nil {
			return "", false
		}
		id, ok := m[value]
		return id, ok
	}

	switch strings.ToUpper(fieldName) {
	case "VARIABLE":
		if id, ok := lookup(maps.Variables); ok {
			return id
		}
		if id, ok := lookup(maps.StageVariables); ok {
			return id
		}
	case "LIST":
		if id, ok := lookup(maps.Lists); ok {
			return id
		}
		if id, ok := lookup(maps.StageLists); ok {
			return id
		}
	case "SOUND_MENU":
		if id, ok := lookup(maps.Sounds); ok {
			return id
		}
	case "DISTANCETOMENU", "OBJECT":
		if id, ok := lookup(maps.Sprites); ok {
			return id
		}
		if id, ok := lookup(maps.SpecialOptions); ok {
			return id
		}
	case "CURRENTMENU", "PROPERTY":
		if id, ok := lookup(maps.SpecialOptions); ok {
			return id
		}
	}
	return value
}

// parseIdxToBlock converts the page-side index map (JSON object keyed by
// stringified 1-based indices) into the cache representation.
func parseIdxToBlock(raw any) map[int]BlockRef {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[int]BlockRef, len(obj))
	for key, val := range obj {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		entry, ok := val.(map[string]any)
		if !ok {
			continue
		}
		ref := BlockRef{}
		if id, ok := entry["id"].(string); ok {
			ref.ID = id
		}
		if opcode, ok := entry["opcode"].(string); ok {
			ref.Opcode = opcode
		}
		out[idx] = ref
	}
	return out
}

// parseValueMaps converts the page-side value map object.
func parseValueMaps(raw any) *ValueMaps {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	strMap := func(key string) map[string]string {
		inner, ok := obj[key].(map[string]any)
		if !ok {
			return nil
		}
		out := make(map[string]string, len(inner))
		for k, v := range inner {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return &ValueMaps{
		Variables:      strMap("variables"),
		StageVariables: strMap("stageVariables"),
		Lists:          strMap("lists"),
		StageLists:     strMap("stageLists"),
		Sounds:         strMap("sounds"),
		Sprites:        strMap("sprites"),
		SpecialOptions: strMap("specialOptions"),
	}
}
