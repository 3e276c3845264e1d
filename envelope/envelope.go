// Package envelope builds the normalized action response envelope shared by
// every primitive and composite command:
//
//	{
//	    "success": <bool>,
//	    "requested_action": {"api": str, "args": {}},
//	    "executed_action": {"api": str, "args": {}},
//	    "data": {},
//	    "error": null | {"code": str, "message": str, "details"?: {}},
//	    "meta": {"session_id": str, "timestamp": str, "duration_ms": int}
//	}
//
// Exactly one of data/error carries information and success is always
// consistent with which one is populated.
package envelope

import (
	"time"

	"github.com/BaSui01/blockbench/types"
)

// Action is an api name plus its argument map. RequestedAction carries the
// args as supplied by the caller; ExecutedAction carries the args actually
// used after index/coordinate resolution, filtered to a known-safe schema.
type Action struct {
	API  string         `json:"api"`
	Args map[string]any `json:"args"`
}

// ErrorInfo is the failure payload of an envelope.
type ErrorInfo struct {
	Code    types.ErrorCode `json:"code"`
	Message string          `json:"message"`
	Details map[string]any  `json:"details,omitempty"`
}

// Meta carries the envelope bookkeeping block.
type Meta struct {
	SessionID  string `json:"session_id"`
	Timestamp  string `json:"timestamp"`
	DurationMS int64  `json:"duration_ms"`
}

// Envelope is the normalized command response record.
type Envelope struct {
	Success         bool           `json:"success"`
	RequestedAction Action         `json:"requested_action"`
	ExecutedAction  Action         `json:"executed_action"`
	Data            map[string]any `json:"data"`
	Error           *ErrorInfo     `json:"error"`
	Meta            Meta           `json:"meta"`
}

// NewAction builds an Action with a defensive copy of args. A nil args map
// becomes an empty map so the envelope shape stays stable.
func NewAction(api string, args map[string]any) Action {
	copied := make(map[string]any, len(args))
	for k, v := range args {
		copied[k] = v
	}
	return Action{API: api, Args: copied}
}

// NewMeta builds the meta block, computing duration from startedAt.
func NewMeta(sessionID string, startedAt time.Time) Meta {
	duration := time.Since(startedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	return Meta{
		SessionID:  sessionID,
		Timestamp:  time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		DurationMS: duration,
	}
}

// Success builds a success envelope. A nil data map becomes an empty map.
func Success(requested, executed Action, data map[string]any, meta Meta) *Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return &Envelope{
		Success:         true,
		RequestedAction: normalize(requested),
		ExecutedAction:  normalize(executed),
		Data:            data,
		Error:           nil,
		Meta:            meta,
	}
}

// Failure builds an error envelope. The requested/executed actions are
// still populated best-effort so a caller can log and replay
// deterministically even on failure.
func Failure(requested, executed Action, errInfo ErrorInfo, meta Meta) *Envelope {
	if errInfo.Code == "" {
		errInfo.Code = types.ErrUnknown
	}
	if errInfo.Message == "" {
		errInfo.Message = "Unknown error"
	}
	return &Envelope{
		Success:         false,
		RequestedAction: normalize(requested),
		ExecutedAction:  normalize(executed),
		Data:            map[string]any{},
		Error:           &errInfo,
		Meta:            meta,
	}
}

func normalize(a Action) Action {
	if a.Args == nil {
		a.Args = map[string]any{}
	}
	return a
}

// NormalizeData strips transport-wrapper fields from a composite payload so
// only business data reaches the caller:
//
//   - drop top-level "success"
//   - drop top-level "api" when redundant with the requested api
//   - unwrap a sole "result" wrapper
//   - sanitize a nested "result" object when other keys are present
func NormalizeData(data any, requestedAPI string) map[string]any {
	if data == nil {
		return map[string]any{}
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return map[string]any{"value": data}
	}

	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	delete(out, "success")
	if requestedAPI != "" && out["api"] == requestedAPI {
		delete(out, "api")
	}

	if len(out) == 1 {
		if inner, present := out["result"]; present {
			innerObj, isObj := inner.(map[string]any)
			if !isObj {
				return map[string]any{"value": inner}
			}
			unwrapped := make(map[string]any, len(innerObj))
			for k, v := range innerObj {
				unwrapped[k] = v
			}
			delete(unwrapped, "success")
			if requestedAPI != "" && unwrapped["api"] == requestedAPI {
				delete(unwrapped, "api")
			}
			return unwrapped
		}
	}

	if nested, isObj := out["result"].(map[string]any); isObj {
		sanitized := make(map[string]any, len(nested))
		for k, v := range nested {
			sanitized[k] = v
		}
		delete(sanitized, "success")
		if requestedAPI != "" && sanitized["api"] == requestedAPI {
			delete(sanitized, "api")
		}
		out["result"] = sanitized
	}

	return out
}
