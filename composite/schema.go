package composite

// argSchema describes which argument keys an API reports back in its
// executed action. A nil value is a passthrough leaf; a non-nil value
// filters a nested object recursively.
type argSchema map[string]argSchema

// executedArgSchemas is the catalog of composite APIs whose executed
// arguments are echoed to the caller. APIs absent from the catalog report
// empty executed arguments regardless of what was sent.
var executedArgSchemas = map[string]argSchema{
	"select_sprite": {"name": nil},
	"select_stage":  {},
	"add_variable":  {"name": nil, "scope": nil},
	"add_list":      {"name": nil, "scope": nil},
	"add_block": {
		"blockType": nil,
		"creation":  {"variableName": nil, "listName": nil},
	},
	"connect_blocks": {
		"sourceBlockIndex": nil,
		"targetBlockIndex": nil,
		"placement":        {"kind": nil, "inputName": nil},
	},
	"detach_blocks":   {"blockIndex": nil},
	"set_block_field": {"blockIndex": nil, "fieldName": nil, "value": nil},
	"delete_block":    {"blockIndex": nil},
	"done":            {},
	"failed":          {},
}

// SanitizeExecutedArgs projects the raw request arguments onto the catalog
// schema for the given API.
func SanitizeExecutedArgs(api string, raw map[string]any) map[string]any {
	schema, ok := executedArgSchemas[api]
	if !ok {
		return map[string]any{}
	}
	return filterArgs(schema, raw)
}

func filterArgs(schema argSchema, raw map[string]any) map[string]any {
	out := map[string]any{}
	for key, nested := range schema {
		val, ok := raw[key]
		if !ok {
			continue
		}
		if nested == nil {
			out[key] = val
			continue
		}
		if inner, ok := val.(map[string]any); ok {
			out[key] = filterArgs(nested, inner)
		}
	}
	return out
}
