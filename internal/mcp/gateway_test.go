package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func newTestGateway() (*Gateway, *StaticRegistry) {
	reg := NewStaticRegistry()
	reg.Register("echo", "echoes its input", map[string]any{"type": "object"},
		ToolFunc(func(ctx context.Context, arguments map[string]any, userID, tenantID string) (any, error) {
			return arguments, nil
		}))
	reg.Register("boom", "always fails", map[string]any{"type": "object"},
		ToolFunc(func(ctx context.Context, arguments map[string]any, userID, tenantID string) (any, error) {
			return nil, errors.New("kaboom")
		}))
	return NewGateway(reg, "bagofwords", "1.0.0"), reg
}

func TestHandleRaw_ParseError(t *testing.T) {
	gw, _ := newTestGateway()
	resp := gw.HandleRaw(context.Background(), []byte("{not json"), "u1", "t1")
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Fatalf("expected parse error, got %+v", resp)
	}
	if resp.ID != nil {
		t.Fatalf("expected nil id on parse error, got %v", resp.ID)
	}
}

func TestHandleRaw_InvalidRequest(t *testing.T) {
	gw, _ := newTestGateway()
	resp := gw.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1}`), "u1", "t1")
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid request error, got %+v", resp)
	}
}

func TestHandleRaw_Initialize(t *testing.T) {
	gw, _ := newTestGateway()
	resp := gw.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`), "u1", "t1")
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok || result["protocolVersion"] != ProtocolVersion {
		t.Fatalf("unexpected initialize result: %+v", resp.Result)
	}
}

func TestHandleRaw_ToolsList(t *testing.T) {
	gw, _ := newTestGateway()
	resp := gw.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`), "u1", "t1")
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	tools := result["tools"].([]ToolDescriptor)
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
}

func TestHandleRaw_ToolsCallSuccess(t *testing.T) {
	gw, _ := newTestGateway()
	body := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"x":1}}}`
	resp := gw.HandleRaw(context.Background(), []byte(body), "u1", "t1")
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["isError"] != false {
		t.Fatalf("expected isError false, got %+v", result)
	}
}

func TestHandleRaw_ToolsCallFailureIsEnvelopeNotRPCError(t *testing.T) {
	gw, _ := newTestGateway()
	body := `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"boom","arguments":{}}}`
	resp := gw.HandleRaw(context.Background(), []byte(body), "u1", "t1")
	if resp.Error != nil {
		t.Fatalf("tool failure must not be a JSON-RPC error object, got %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["isError"] != true {
		t.Fatalf("expected isError true, got %+v", result)
	}
	content := result["content"].([]map[string]any)
	if content[0]["text"] != "kaboom" {
		t.Fatalf("expected failure text to be the tool error, got %+v", content)
	}
}

func TestHandleRaw_UnknownTool(t *testing.T) {
	gw, _ := newTestGateway()
	body := `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope"}}`
	resp := gw.HandleRaw(context.Background(), []byte(body), "u1", "t1")
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", resp)
	}
}

func TestHandleRaw_MissingToolName(t *testing.T) {
	gw, _ := newTestGateway()
	body := `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{}}`
	resp := gw.HandleRaw(context.Background(), []byte(body), "u1", "t1")
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected invalid params error for missing name, got %+v", resp)
	}
}

func TestHandleRaw_UnknownMethod(t *testing.T) {
	gw, _ := newTestGateway()
	resp := gw.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":7,"method":"nope"}`), "u1", "t1")
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method not found error, got %+v", resp)
	}
}

func TestRoundTripJSONEncoding(t *testing.T) {
	gw, _ := newTestGateway()
	resp := gw.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":8,"method":"initialize"}`), "u1", "t1")
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["error"] != nil {
		t.Fatalf("expected no error field in successful response JSON, got %v", decoded["error"])
	}
}
