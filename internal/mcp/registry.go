// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import "context"

// ToolFunc adapts a plain function to the Tool interface.
type ToolFunc func(ctx context.Context, arguments map[string]any, userID, tenantID string) (any, error)

// Execute calls f.
func (f ToolFunc) Execute(ctx context.Context, arguments map[string]any, userID, tenantID string) (any, error) {
	return f(ctx, arguments, userID, tenantID)
}

type registeredTool struct {
	descriptor ToolDescriptor
	tool       Tool
}

// StaticRegistry is an in-process Registry over a fixed tool set, wired at
// composition-root time. The spec treats tool business logic as an
// external collaborator; this registry is the seam where that collaborator
// plugs in.
type StaticRegistry struct {
	tools []registeredTool
}

// NewStaticRegistry builds a registry over descriptor/tool pairs.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{}
}

// Register adds a tool under name with the given description and schema.
func (r *StaticRegistry) Register(name, description string, inputSchema map[string]any, tool Tool) {
	r.tools = append(r.tools, registeredTool{
		descriptor: ToolDescriptor{Name: name, Description: description, InputSchema: inputSchema},
		tool:       tool,
	})
}

// ListTools returns the registered descriptors in registration order.
func (r *StaticRegistry) ListTools() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.descriptor)
	}
	return out
}

// GetTool resolves name to its executor.
func (r *StaticRegistry) GetTool(name string) (Tool, bool) {
	for _, t := range r.tools {
		if t.descriptor.Name == name {
			return t.tool, true
		}
	}
	return nil, false
}
