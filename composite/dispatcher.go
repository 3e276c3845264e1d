// Package composite executes the high-level editor APIs. Every call runs a
// page-side script and is reported as a normalized envelope; block-indexed
// calls resolve through the session's IndexCache first.
package composite

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/engine"
	"github.com/BaSui01/blockbench/engine/scripts"
	"github.com/BaSui01/blockbench/envelope"
	"github.com/BaSui01/blockbench/types"
)

// Dispatcher routes composite requests to their page-side operations.
type Dispatcher struct {
	page      engine.Page
	sessionID string
	cache     *IndexCache
	logger    *zap.Logger
}

// NewDispatcher builds a dispatcher with a fresh, absent index cache.
func NewDispatcher(page engine.Page, sessionID string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		page:      page,
		sessionID: sessionID,
		cache:     NewIndexCache(),
		logger:    logger.With(zap.String("component", "composite"), zap.String("session_id", sessionID)),
	}
}

// Cache exposes the session's index cache.
func (d *Dispatcher) Cache() *IndexCache {
	return d.cache
}

// Execute runs one composite request and always returns an envelope. A
// panic anywhere in dispatch is reported as a runtime failure instead of
// tearing down the server.
func (d *Dispatcher) Execute(ctx context.Context, req types.CompositeRequest) (env *envelope.Envelope) {
	startedAt := time.Now()
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	requested := envelope.NewAction(req.API, args)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("composite dispatch panicked", zap.String("api", req.API), zap.Any("panic", r))
			env = d.failure(requested, args,
				types.NewErrorf(types.ErrRuntime, "Unexpected error executing %s: %v", req.API, r), startedAt)
		}
	}()

	if strings.TrimSpace(req.API) == "" {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "Missing 'api' field"), startedAt)
	}

	d.logger.Debug("executing composite api", zap.String("api", req.API))

	switch req.API {
	case "run_project":
		return d.simpleOp(ctx, requested, args, startedAt)
	case "stop_project":
		return d.simpleOp(ctx, requested, args, startedAt)
	case "select_category":
		return d.selectCategory(ctx, requested, args, startedAt)
	case "select_sprite":
		return d.selectSprite(ctx, requested, args, startedAt)
	case "select_stage":
		return d.selectStage(ctx, requested, args, startedAt)
	case "add_variable":
		return d.addNamed(ctx, requested, args, startedAt, "add_variable")
	case "add_list":
		return d.addNamed(ctx, requested, args, startedAt, "add_list")
	case "add_block":
		return d.addBlock(ctx, requested, args, startedAt)
	case "get_blocks_pseudocode":
		return d.blocksPseudocode(ctx, requested, args, startedAt)
	case "get_blocks_structure":
		return d.blocksStructure(ctx, requested, args, startedAt)
	case "set_block_field":
		return d.setBlockField(ctx, requested, args, startedAt)
	case "connect_blocks":
		return d.connectBlocks(ctx, requested, args, startedAt)
	case "detach_blocks":
		return d.detachBlocks(ctx, requested, args, startedAt)
	case "delete_block":
		return d.deleteBlock(ctx, requested, args, startedAt)
	case "custom_js":
		return d.customJS(ctx, requested, args, startedAt)
	case "done", "failed":
		// Terminal markers recorded by the caller; nothing runs in the page.
		return d.success(requested, args, map[string]any{"acknowledged": true}, startedAt)
	default:
		return d.failure(requested, args,
			types.NewErrorf(types.ErrUnsupported, "Unsupported api: %s", req.API), startedAt)
	}
}

// simpleOp covers the argument-free project controls.
func (d *Dispatcher) simpleOp(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	res, terr := d.evalOp(ctx, types.ErrRuntime, requested.API)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}
	return d.success(requested, args, envelope.NormalizeData(res, requested.API), startedAt)
}

func (d *Dispatcher) selectCategory(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	category := firstString(args, "category", "category_name")
	if category == "" {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "Missing required argument: category"), startedAt)
	}
	res, terr := d.evalOp(ctx, types.ErrRuntime, "select_category", category)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}
	return d.success(requested, map[string]any{"category": category},
		envelope.NormalizeData(res, requested.API), startedAt)
}

func (d *Dispatcher) selectSprite(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	name := firstString(args, "name")
	if name == "" {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "Missing required argument: name"), startedAt)
	}
	res, terr := d.evalOp(ctx, types.ErrRuntime, "select_sprite", name)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}
	return d.success(requested, map[string]any{"name": name},
		envelope.NormalizeData(res, requested.API), startedAt)
}

func (d *Dispatcher) selectStage(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	res, terr := d.evalOp(ctx, types.ErrRuntime, "select_stage")
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}
	return d.success(requested, map[string]any{},
		envelope.NormalizeData(res, requested.API), startedAt)
}

// addNamed covers add_variable and add_list, which share the name/scope
// contract. "all" targets the stage; "sprite" targets the editing target.
func (d *Dispatcher) addNamed(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time, op string) *envelope.Envelope {
	name := firstString(args, "name")
	if name == "" {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "Missing required argument: name"), startedAt)
	}
	scope := firstString(args, "scope")
	if scope != "sprite" && scope != "all" {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "'scope' must be 'sprite' or 'all'"), startedAt)
	}

	payload := map[string]any{"name": name, "scope": scope}
	if op == "add_variable" {
		payload["cloud"] = boolArg(args, "cloud")
	}
	res, terr := d.evalOp(ctx, types.ErrRuntime, op, payload)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}
	executed := map[string]any{"name": name, "scope": scope}
	return d.success(requested, executed,
		map[string]any{"created": envelope.NormalizeData(res, requested.API)}, startedAt)
}

func (d *Dispatcher) addBlock(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	blockType := firstString(args, "blockType", "block_type")
	if blockType == "" {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "Missing required argument: blockType"), startedAt)
	}
	creation := map[string]any{}
	if raw, ok := args["creation"].(map[string]any); ok {
		if v := firstString(raw, "variableName"); v != "" {
			creation["variableName"] = v
		}
		if v := firstString(raw, "listName"); v != "" {
			creation["listName"] = v
		}
	}

	res, terr := d.evalOp(ctx, types.ErrRuntime, "add_block",
		map[string]any{"blockType": blockType, "creation": creation})
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}

	// Indices shift when the block set changes.
	d.cache.Invalidate()

	executed := map[string]any{"blockType": blockType, "creation": creation}
	return d.success(requested, executed, map[string]any{
		"blockId":   res["blockId"],
		"connected": false,
	}, startedAt)
}

func (d *Dispatcher) blocksPseudocode(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	res, terr := d.evalOp(ctx, types.ErrRuntime, "get_blocks_pseudocode")
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}
	d.cache.Rebuild(parseIdxToBlock(res["idxToBlock"]))
	if maps := parseValueMaps(res["valueToIdMappings"]); maps != nil {
		d.cache.SetValueMaps(maps)
	}
	return d.success(requested, args, envelope.NormalizeData(res, requested.API), startedAt)
}

func (d *Dispatcher) blocksStructure(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	res, terr := d.evalOp(ctx, types.ErrRuntime, "get_blocks_structure")
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}
	d.cache.Rebuild(parseIdxToBlock(res["idxToBlock"]))
	return d.success(requested, args, envelope.NormalizeData(res, requested.API), startedAt)
}

func (d *Dispatcher) setBlockField(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	idx, ok := intArg(args, "blockIndex")
	if !ok || idx < 1 {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "'blockIndex' must be a positive integer"), startedAt)
	}
	fieldName := firstString(args, "fieldName", "field_name")
	if fieldName == "" {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "Missing required argument: fieldName"), startedAt)
	}
	rawValue, present := args["value"]
	if !present {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "Missing required argument: value"), startedAt)
	}

	ref, terr := d.cache.Resolve(idx)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}

	value := rawValue
	if s, ok := rawValue.(string); ok {
		value = d.cache.Translate(s, fieldName)
	}

	res, terr := d.evalOp(ctx, types.ErrRuntime, "set_block_field",
		map[string]any{"blockId": ref.ID, "fieldName": fieldName, "value": value})
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}

	// Field edits do not move blocks, so indices stay valid.
	executed := map[string]any{"blockIndex": idx, "fieldName": fieldName, "value": value}
	data := envelope.NormalizeData(res, requested.API)
	data["blockId"] = ref.ID
	data["opcode"] = ref.Opcode
	return d.success(requested, executed, data, startedAt)
}

func (d *Dispatcher) connectBlocks(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	sourceIdx, ok := intArg(args, "sourceBlockIndex")
	if !ok || sourceIdx < 1 {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "'sourceBlockIndex' must be a positive integer"), startedAt)
	}
	targetIdx, ok := intArg(args, "targetBlockIndex")
	if !ok || targetIdx < 1 {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "'targetBlockIndex' must be a positive integer"), startedAt)
	}

	placementRaw, _ := args["placement"].(map[string]any)
	kind := firstString(placementRaw, "kind")
	inputName := firstString(placementRaw, "inputName", "input_name")
	switch kind {
	case "after", "before":
	case "statement_into", "value_into":
		if inputName == "" {
			return d.failure(requested, args,
				types.NewErrorf(types.ErrInvalidArg, "placement kind %s requires inputName", kind), startedAt)
		}
	default:
		return d.failure(requested, args,
			types.NewErrorf(types.ErrInvalidArg, "Invalid placement kind: %s", kind), startedAt)
	}

	source, terr := d.cache.Resolve(sourceIdx)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}
	target, terr := d.cache.Resolve(targetIdx)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}

	placement := map[string]any{"kind": kind}
	if inputName != "" {
		placement["inputName"] = inputName
	}
	res, terr := d.evalOp(ctx, types.ErrRuntime, "connect_blocks", map[string]any{
		"sourceId":  source.ID,
		"targetId":  target.ID,
		"placement": placement,
	})
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}

	d.cache.Invalidate()

	executed := map[string]any{
		"sourceBlockIndex": sourceIdx,
		"targetBlockIndex": targetIdx,
		"placement":        placement,
	}
	return d.success(requested, executed, envelope.NormalizeData(res, requested.API), startedAt)
}

func (d *Dispatcher) detachBlocks(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	idx, ok := intArg(args, "blockIndex")
	if !ok || idx < 1 {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "'blockIndex' must be a positive integer"), startedAt)
	}
	ref, terr := d.cache.Resolve(idx)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}

	res, terr := d.evalOp(ctx, types.ErrRuntime, "detach_blocks", map[string]any{"blockId": ref.ID})
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}

	d.cache.Invalidate()

	executed := map[string]any{"blockIndex": idx}
	data := envelope.NormalizeData(res, requested.API)
	data["blockId"] = ref.ID
	return d.success(requested, executed, data, startedAt)
}

func (d *Dispatcher) deleteBlock(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	idx, ok := intArg(args, "blockIndex")
	if !ok {
		idx, ok = intArg(args, "index")
	}
	if !ok || idx < 1 {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "'blockIndex' must be a positive integer"), startedAt)
	}
	ref, terr := d.cache.Resolve(idx)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}

	res, terr := d.evalOp(ctx, types.ErrRuntime, "delete_block", ref.ID)
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}

	d.cache.Invalidate()

	executed := map[string]any{"blockIndex": idx}
	return d.success(requested, executed, map[string]any{
		"deleted":   true,
		"index":     idx,
		"blockId":   ref.ID,
		"blockInfo": res["deletedBlock"],
	}, startedAt)
}

func (d *Dispatcher) customJS(ctx context.Context, requested envelope.Action, args map[string]any, startedAt time.Time) *envelope.Envelope {
	fnSrc := firstString(args, "fn", "function", "code")
	if fnSrc == "" {
		return d.failure(requested, args,
			types.NewError(types.ErrInvalidArg, "Missing required argument: fn"), startedAt)
	}
	res, terr := d.evalOp(ctx, types.ErrJavaScript, "custom_js",
		map[string]any{"fnSrc": fnSrc, "payload": args["payload"]})
	if terr != nil {
		return d.failure(requested, args, terr, startedAt)
	}
	return d.success(requested, args, envelope.NormalizeData(res, requested.API), startedAt)
}

// evalOp builds and evaluates one page-side operation. Evaluation-layer
// failures are reported under evalErrCode; script-level failures carry the
// code the script chose.
func (d *Dispatcher) evalOp(ctx context.Context, evalErrCode types.ErrorCode, name string, args ...any) (map[string]any, *types.Error) {
	script, err := scripts.Build(name, args...)
	if err != nil {
		return nil, types.NewError(types.ErrInternal, err.Error())
	}

	var raw any
	if err := d.page.Evaluate(ctx, script, &raw); err != nil {
		if terr, ok := err.(*types.Error); ok {
			return nil, terr
		}
		return nil, types.NewErrorf(evalErrCode, "Script execution failed: %v", err)
	}

	result, ok := raw.(map[string]any)
	if !ok {
		return nil, types.NewError(types.ErrMalformedResponse, "Malformed response from page script")
	}
	if success, _ := result["success"].(bool); success {
		return result, nil
	}

	if errObj, ok := result["error"].(map[string]any); ok {
		code := types.ErrUnknown
		if s, ok := errObj["code"].(string); ok && s != "" {
			code = types.ErrorCode(s)
		}
		message, _ := errObj["message"].(string)
		if message == "" {
			message = "Unknown error"
		}
		return nil, types.NewError(code, message)
	}
	return nil, types.NewError(types.ErrMalformedResponse, "Malformed response from page script")
}

func (d *Dispatcher) success(requested envelope.Action, executedArgs map[string]any, data map[string]any, startedAt time.Time) *envelope.Envelope {
	executed := envelope.NewAction(requested.API, SanitizeExecutedArgs(requested.API, executedArgs))
	return envelope.Success(requested, executed, data, envelope.NewMeta(d.sessionID, startedAt))
}

func (d *Dispatcher) failure(requested envelope.Action, executedArgs map[string]any, terr *types.Error, startedAt time.Time) *envelope.Envelope {
	executed := envelope.NewAction(requested.API, SanitizeExecutedArgs(requested.API, executedArgs))
	d.logger.Warn("composite api failed",
		zap.String("api", requested.API),
		zap.String("code", string(terr.Code)),
		zap.String("message", terr.Message))
	return envelope.Failure(requested, executed, envelope.ErrorInfo{
		Code:    terr.Code,
		Message: terr.Message,
		Details: terr.Details,
	}, envelope.NewMeta(d.sessionID, startedAt))
}

func firstString(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := args[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// intArg reads a JSON number (or native int from internal callers) as an
// int, rejecting fractional values.
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}
