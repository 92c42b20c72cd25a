package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/tox-bridge/bridge"
	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/instance"
	"github.com/wippyai/tox-bridge/native"
)

type paramInfo struct {
	witType wit.Type
	name    string
	typeStr string
}

type command struct {
	run    func(ctx context.Context, args []any) (string, error)
	name   string
	result string
	params []paramInfo
}

func param(name string, t wit.Type) paramInfo {
	return paramInfo{name: name, witType: t, typeStr: event.TypeName(t)}
}

var sessionParam = param("session", wit.U32{})

func newCommands(b *bridge.Bridge, defaults native.Options) []command {
	cmds := []command{
		{
			name:   "create",
			result: "u32",
			run: func(ctx context.Context, _ []any) (string, error) {
				id, err := b.Create(ctx, defaults)
				if err != nil {
					return "", err
				}
				return strconv.FormatUint(uint64(id), 10), nil
			},
		},
		{
			name:   "sessions",
			result: "list<session>",
			run: func(context.Context, []any) (string, error) {
				var out []string
				for _, id := range b.Sessions() {
					state, err := b.State(id)
					if err != nil {
						continue
					}
					out = append(out, fmt.Sprintf("%d %s", id, state))
				}
				if len(out) == 0 {
					return "no sessions", nil
				}
				return strings.Join(out, "\n"), nil
			},
		},
		{
			name:   "drain",
			params: []paramInfo{sessionParam},
			result: "list<event>",
			run: func(ctx context.Context, args []any) (string, error) {
				events, err := b.Drain(ctx, args[0].(uint32))
				if err != nil {
					return "", err
				}
				data, err := event.MarshalBatch(events)
				if err != nil {
					return "", err
				}
				return string(data), nil
			},
		},
		{
			name:   "invoke",
			params: []paramInfo{sessionParam, param("action", wit.String{}), param("args", wit.String{})},
			result: "json",
			run: func(ctx context.Context, args []any) (string, error) {
				var callArgs []any
				if raw := args[2].(string); raw != "" {
					if err := json.Unmarshal([]byte(raw), &callArgs); err != nil {
						return "", errors.InvalidArgument(errors.PhaseInvoke, []string{"args"}, raw, "args must be a JSON array")
					}
				}
				res, err := b.Invoke(ctx, args[0].(uint32), args[1].(string), callArgs...)
				if err != nil {
					return "", err
				}
				out, err := json.Marshal(res)
				if err != nil {
					return fmt.Sprintf("%v", res), nil
				}
				return string(out), nil
			},
		},
		{
			name:   "kill",
			params: []paramInfo{sessionParam},
			run: func(ctx context.Context, args []any) (string, error) {
				return "ok", b.Kill(ctx, args[0].(uint32))
			},
		},
		{
			name:   "finalize",
			params: []paramInfo{sessionParam},
			run: func(_ context.Context, args []any) (string, error) {
				return "ok", b.Finalize(args[0].(uint32))
			},
		},
		{
			name:   "savedata",
			params: []paramInfo{sessionParam},
			result: "bytes",
			run: func(ctx context.Context, args []any) (string, error) {
				data, err := b.Snapshot(ctx, args[0].(uint32))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d bytes %s", len(data), hex.EncodeToString(data)), nil
			},
		},
	}

	for _, k := range event.Kinds() {
		cmds = append(cmds, injectCommand(b, k))
	}
	return cmds
}

// injectCommand builds a command whose parameters follow the event's
// schema. Arguments are assembled into a tagged record and decoded the
// same way the HTTP surface decodes injected events.
func injectCommand(b *bridge.Bridge, k event.Kind) command {
	fields := event.Fields(k)
	params := []paramInfo{sessionParam}
	for _, f := range fields {
		params = append(params, param(f.Name, f.Type))
	}
	return command{
		name:   "inject_" + k.String(),
		params: params,
		run: func(_ context.Context, args []any) (string, error) {
			data := make(map[string]any, len(fields))
			for i, f := range fields {
				data[f.Name] = args[i+1]
			}
			raw, err := json.Marshal(map[string]any{"kind": k.String(), "data": data})
			if err != nil {
				return "", err
			}
			e, err := event.Unmarshal(raw)
			if err != nil {
				return "", err
			}
			return "ok", b.InjectEvent(args[0].(instance.ID), e)
		},
	}
}

func findCommand(cmds []command, name string) (command, bool) {
	for _, c := range cmds {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// convertArg parses a text field into the Go value its WIT type expects.
// Byte lists come out as []byte, public keys as hex text and enums as
// their case name.
func convertArg(value string, p paramInfo) (any, error) {
	bad := func(detail string) error {
		return errors.InvalidArgument(errors.PhaseInject, []string{p.name}, value, detail)
	}
	switch t := p.witType.(type) {
	case wit.String:
		return value, nil
	case wit.U32:
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, bad("expected u32")
		}
		return uint32(v), nil
	case wit.U64:
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, bad("expected u64")
		}
		return v, nil
	case wit.Bool:
		switch value {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		}
		return nil, bad("expected bool")
	case *wit.TypeDef:
		if cases := event.EnumCases(t); cases != nil {
			for _, c := range cases {
				if c == value {
					return value, nil
				}
			}
			return nil, bad("expected one of " + strings.Join(cases, ", "))
		}
		if p.typeStr == "public-key" {
			key, err := hex.DecodeString(value)
			if err != nil || len(key) != native.PublicKeySize {
				return nil, bad(fmt.Sprintf("expected %d hex-encoded bytes", native.PublicKeySize))
			}
			return value, nil
		}
		return []byte(value), nil
	}
	return value, nil
}

// convertArgs converts one value per parameter. Trailing string parameters
// may be omitted and default to "".
func convertArgs(values []string, params []paramInfo) ([]any, error) {
	for len(values) < len(params) {
		if _, ok := params[len(values)].witType.(wit.String); !ok {
			break
		}
		values = append(values, "")
	}
	if len(values) != len(params) {
		return nil, errors.InvalidArgument(errors.PhaseInject, nil, len(values),
			fmt.Sprintf("expected %d arguments, got %d", len(params), len(values)))
	}
	out := make([]any, len(params))
	for i, p := range params {
		v, err := convertArg(values[i], p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatCommand(c command, render func(string) string) string {
	params := make([]string, 0, len(c.params))
	for _, p := range c.params {
		params = append(params, p.name+": "+render(p.typeStr))
	}
	result := ""
	if c.result != "" {
		result = " -> " + render(c.result)
	}
	return c.name + "(" + strings.Join(params, ", ") + ")" + result
}
