package event

import (
	"go.bytecodealliance.org/wit"
)

// Field describes one argument of an injectable event.
type Field struct {
	Type wit.Type
	Name string
}

func enumType(name string, cases ...string) *wit.TypeDef {
	e := &wit.Enum{}
	for _, c := range cases {
		e.Cases = append(e.Cases, wit.EnumCase{Name: c})
	}
	return &wit.TypeDef{Name: &name, Kind: e}
}

func bytesType() *wit.TypeDef {
	name := "bytes"
	return &wit.TypeDef{Name: &name, Kind: &wit.List{Type: wit.U8{}}}
}

func publicKeyType() *wit.TypeDef {
	name := "public-key"
	return &wit.TypeDef{Name: &name, Kind: &wit.List{Type: wit.U8{}}}
}

var (
	connectionType  = enumType("connection", "none", "tcp", "udp")
	userStatusType  = enumType("user-status", "none", "away", "busy")
	messageTypeType = enumType("message-type", "normal", "action")
	fileControlType = enumType("file-control", "resume", "pause", "cancel")
)

var schemas = map[Kind][]Field{
	KindSelfConnectionStatus:   {{Name: "status", Type: connectionType}},
	KindFriendName:             {{Name: "friend", Type: wit.U32{}}, {Name: "name", Type: bytesType()}},
	KindFriendStatusMessage:    {{Name: "friend", Type: wit.U32{}}, {Name: "message", Type: bytesType()}},
	KindFriendStatus:           {{Name: "friend", Type: wit.U32{}}, {Name: "status", Type: userStatusType}},
	KindFriendConnectionStatus: {{Name: "friend", Type: wit.U32{}}, {Name: "status", Type: connectionType}},
	KindFriendTyping:           {{Name: "friend", Type: wit.U32{}}, {Name: "is_typing", Type: wit.Bool{}}},
	KindFriendReadReceipt:      {{Name: "friend", Type: wit.U32{}}, {Name: "message_id", Type: wit.U32{}}},
	KindFriendRequest:          {{Name: "public_key", Type: publicKeyType()}, {Name: "message", Type: bytesType()}},
	KindFriendMessage: {
		{Name: "friend", Type: wit.U32{}},
		{Name: "type", Type: messageTypeType},
		{Name: "message", Type: bytesType()},
	},
	KindFileRecvControl: {
		{Name: "friend", Type: wit.U32{}},
		{Name: "file", Type: wit.U32{}},
		{Name: "control", Type: fileControlType},
	},
	KindFileChunkRequest: {
		{Name: "friend", Type: wit.U32{}},
		{Name: "file", Type: wit.U32{}},
		{Name: "position", Type: wit.U64{}},
		{Name: "length", Type: wit.U32{}},
	},
	KindFileRecv: {
		{Name: "friend", Type: wit.U32{}},
		{Name: "file", Type: wit.U32{}},
		{Name: "kind", Type: wit.U32{}},
		{Name: "file_size", Type: wit.U64{}},
		{Name: "filename", Type: bytesType()},
	},
	KindFileRecvChunk: {
		{Name: "friend", Type: wit.U32{}},
		{Name: "file", Type: wit.U32{}},
		{Name: "position", Type: wit.U64{}},
		{Name: "data", Type: bytesType()},
	},
	KindFriendLossyPacket:    {{Name: "friend", Type: wit.U32{}}, {Name: "data", Type: bytesType()}},
	KindFriendLosslessPacket: {{Name: "friend", Type: wit.U32{}}, {Name: "data", Type: bytesType()}},
}

// Fields returns the argument schema of an injectable event kind, in the
// order the callback takes them.
func Fields(k Kind) []Field {
	return schemas[k]
}

// TypeName renders a field type the way WIT spells it.
func TypeName(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U32:
		return "u32"
	case wit.U64:
		return "u64"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	}
	return "unknown"
}

// EnumCases returns the case names of an enum field type, or nil.
func EnumCases(t wit.Type) []string {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil
	}
	e, ok := td.Kind.(*wit.Enum)
	if !ok {
		return nil
	}
	out := make([]string, len(e.Cases))
	for i, c := range e.Cases {
		out[i] = c.Name
	}
	return out
}
