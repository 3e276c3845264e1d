package coords

// RewritePlan maps the coordinate arguments of an action plan from model
// space into screen space, in place of a new map. Non-coordinate actions and
// plans without both members of a pair are returned unchanged. Args decoded
// from JSON carry numbers as float64; both int and float64 are accepted.
func RewritePlan(api string, args map[string]any, model string, screenWidth, screenHeight int) (map[string]any, error) {
	if len(args) == 0 {
		return args, nil
	}
	adapter := ForModel(model)
	if _, isIdentity := adapter.(Identity); isIdentity {
		return args, nil
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	switch api {
	case "click", "double_click", "move_to", "scroll":
		if err := rewritePair(adapter, out, "x", "y", screenWidth, screenHeight); err != nil {
			return nil, err
		}
	case "drag_and_drop":
		if err := rewritePair(adapter, out, "start_x", "start_y", screenWidth, screenHeight); err != nil {
			return nil, err
		}
		if err := rewritePair(adapter, out, "end_x", "end_y", screenWidth, screenHeight); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func rewritePair(adapter Adapter, args map[string]any, xKey, yKey string, screenWidth, screenHeight int) error {
	x, okX := asInt(args[xKey])
	y, okY := asInt(args[yKey])
	if !okX || !okY {
		return nil
	}
	p, err := adapter.ToScreen(Point{X: x, Y: y}, screenWidth, screenHeight)
	if err != nil {
		return err
	}
	args[xKey] = p.X
	args[yKey] = p.Y
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
