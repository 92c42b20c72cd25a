package event

import "fmt"

// Kind identifies the record type of an Event.
type Kind uint8

const (
	KindSelfConnectionStatus Kind = iota + 1
	KindFriendName
	KindFriendStatusMessage
	KindFriendStatus
	KindFriendConnectionStatus
	KindFriendTyping
	KindFriendReadReceipt
	KindFriendRequest
	KindFriendMessage
	KindFileRecvControl
	KindFileChunkRequest
	KindFileRecv
	KindFileRecvChunk
	KindFriendLossyPacket
	KindFriendLosslessPacket
)

var kindNames = [...]string{
	KindSelfConnectionStatus:   "self_connection_status",
	KindFriendName:             "friend_name",
	KindFriendStatusMessage:    "friend_status_message",
	KindFriendStatus:           "friend_status",
	KindFriendConnectionStatus: "friend_connection_status",
	KindFriendTyping:           "friend_typing",
	KindFriendReadReceipt:      "friend_read_receipt",
	KindFriendRequest:          "friend_request",
	KindFriendMessage:          "friend_message",
	KindFileRecvControl:        "file_recv_control",
	KindFileChunkRequest:       "file_chunk_request",
	KindFileRecv:               "file_recv",
	KindFileRecvChunk:          "file_recv_chunk",
	KindFriendLossyPacket:      "friend_lossy_packet",
	KindFriendLosslessPacket:   "friend_lossless_packet",
}

// Kinds lists every record kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames)-1)
	for k := KindSelfConnectionStatus; k <= KindFriendLosslessPacket; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name != "" && name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// Connection is the transport a peer (or the local core) is reachable over.
type Connection uint32

const (
	ConnectionNone Connection = iota
	ConnectionTCP
	ConnectionUDP
)

func (c Connection) Valid() bool { return c <= ConnectionUDP }

func (c Connection) String() string {
	switch c {
	case ConnectionNone:
		return "none"
	case ConnectionTCP:
		return "tcp"
	case ConnectionUDP:
		return "udp"
	}
	return fmt.Sprintf("Connection(%d)", uint32(c))
}

// UserStatus is a friend's presence.
type UserStatus uint32

const (
	UserStatusNone UserStatus = iota
	UserStatusAway
	UserStatusBusy
)

func (s UserStatus) Valid() bool { return s <= UserStatusBusy }

func (s UserStatus) String() string {
	switch s {
	case UserStatusNone:
		return "none"
	case UserStatusAway:
		return "away"
	case UserStatusBusy:
		return "busy"
	}
	return fmt.Sprintf("UserStatus(%d)", uint32(s))
}

// MessageType distinguishes ordinary chat lines from /me actions.
type MessageType uint32

const (
	MessageNormal MessageType = iota
	MessageAction
)

func (t MessageType) Valid() bool { return t <= MessageAction }

func (t MessageType) String() string {
	switch t {
	case MessageNormal:
		return "normal"
	case MessageAction:
		return "action"
	}
	return fmt.Sprintf("MessageType(%d)", uint32(t))
}

// FileControl is a transfer control command.
type FileControl uint32

const (
	FileControlResume FileControl = iota
	FileControlPause
	FileControlCancel
)

func (c FileControl) Valid() bool { return c <= FileControlCancel }

func (c FileControl) String() string {
	switch c {
	case FileControlResume:
		return "resume"
	case FileControlPause:
		return "pause"
	case FileControlCancel:
		return "cancel"
	}
	return fmt.Sprintf("FileControl(%d)", uint32(c))
}

// enumValue is implemented by every enumeration above.
type enumValue interface {
	Valid() bool
	fmt.Stringer
}

// parseEnum maps a name produced by String back to its value.
func parseEnum[T interface {
	~uint32
	enumValue
}](s string, max T) (T, bool) {
	for v := T(0); v <= max; v++ {
		if v.String() == s {
			return v, true
		}
	}
	return 0, false
}

func ParseConnection(s string) (Connection, bool) { return parseEnum(s, ConnectionUDP) }
func ParseUserStatus(s string) (UserStatus, bool) { return parseEnum(s, UserStatusBusy) }
func ParseMessageType(s string) (MessageType, bool) {
	return parseEnum(s, MessageAction)
}
func ParseFileControl(s string) (FileControl, bool) {
	return parseEnum(s, FileControlCancel)
}
