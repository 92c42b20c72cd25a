package event

import (
	"encoding/hex"
	"fmt"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/native"
)

// PublicKey is a peer's long-term public key. It encodes as hex text.
type PublicKey [native.PublicKeySize]byte

func (k PublicKey) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(k)))
	hex.Encode(out, k[:])
	return out, nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != len(k) {
		return errors.InvalidArgument(errors.PhaseTranslate, []string{"public_key"}, string(text),
			fmt.Sprintf("public key must be %d hex-encoded bytes", len(k)))
	}
	if _, err := hex.Decode(k[:], text); err != nil {
		return errors.InvalidArgument(errors.PhaseTranslate, []string{"public_key"}, string(text), err.Error())
	}
	return nil
}

// Event is one tagged record in a session's event log.
type Event interface {
	Kind() Kind
}

type SelfConnectionStatus struct {
	Status Connection `json:"status"`
}

type FriendName struct {
	Name   []byte `json:"name"`
	Friend uint32 `json:"friend"`
}

type FriendStatusMessage struct {
	Message []byte `json:"message"`
	Friend  uint32 `json:"friend"`
}

type FriendStatus struct {
	Friend uint32     `json:"friend"`
	Status UserStatus `json:"status"`
}

type FriendConnectionStatus struct {
	Friend uint32     `json:"friend"`
	Status Connection `json:"status"`
}

type FriendTyping struct {
	Friend   uint32 `json:"friend"`
	IsTyping bool   `json:"is_typing"`
}

type FriendReadReceipt struct {
	Friend    uint32 `json:"friend"`
	MessageID uint32 `json:"message_id"`
}

// FriendRequest carries the sender's key. When the native core delivered a
// key of the wrong length, RawPublicKey holds those bytes as received,
// PublicKey is left zero and Validate rejects the record.
type FriendRequest struct {
	Message      []byte    `json:"message"`
	RawPublicKey []byte    `json:"raw_public_key"`
	PublicKey    PublicKey `json:"public_key"`
}

// Key returns the key bytes exactly as the native core delivered them.
func (r FriendRequest) Key() []byte {
	if r.RawPublicKey != nil {
		return r.RawPublicKey
	}
	return r.PublicKey[:]
}

type FriendMessage struct {
	Message []byte      `json:"message"`
	Friend  uint32      `json:"friend"`
	Type    MessageType `json:"type"`
}

type FileRecvControl struct {
	Friend  uint32      `json:"friend"`
	File    uint32      `json:"file"`
	Control FileControl `json:"control"`
}

type FileChunkRequest struct {
	Position uint64 `json:"position"`
	Friend   uint32 `json:"friend"`
	File     uint32 `json:"file"`
	Length   uint32 `json:"length"`
}

type FileRecv struct {
	Filename []byte `json:"filename"`
	FileSize uint64 `json:"file_size"`
	Friend   uint32 `json:"friend"`
	File     uint32 `json:"file"`
	FileKind uint32 `json:"kind"`
}

type FileRecvChunk struct {
	Data     []byte `json:"data"`
	Position uint64 `json:"position"`
	Friend   uint32 `json:"friend"`
	File     uint32 `json:"file"`
}

type FriendLossyPacket struct {
	Data   []byte `json:"data"`
	Friend uint32 `json:"friend"`
}

type FriendLosslessPacket struct {
	Data   []byte `json:"data"`
	Friend uint32 `json:"friend"`
}

func (SelfConnectionStatus) Kind() Kind   { return KindSelfConnectionStatus }
func (FriendName) Kind() Kind             { return KindFriendName }
func (FriendStatusMessage) Kind() Kind    { return KindFriendStatusMessage }
func (FriendStatus) Kind() Kind           { return KindFriendStatus }
func (FriendConnectionStatus) Kind() Kind { return KindFriendConnectionStatus }
func (FriendTyping) Kind() Kind           { return KindFriendTyping }
func (FriendReadReceipt) Kind() Kind      { return KindFriendReadReceipt }
func (FriendRequest) Kind() Kind          { return KindFriendRequest }
func (FriendMessage) Kind() Kind          { return KindFriendMessage }
func (FileRecvControl) Kind() Kind        { return KindFileRecvControl }
func (FileChunkRequest) Kind() Kind       { return KindFileChunkRequest }
func (FileRecv) Kind() Kind               { return KindFileRecv }
func (FileRecvChunk) Kind() Kind          { return KindFileRecvChunk }
func (FriendLossyPacket) Kind() Kind      { return KindFriendLossyPacket }
func (FriendLosslessPacket) Kind() Kind   { return KindFriendLosslessPacket }

// Validate reports records whose enumeration fields hold a value outside the
// known cases. Such records come from a native core that sent an unexpected
// integer; the raw value is preserved so it can be inspected.
func Validate(e Event) error {
	var (
		field string
		v     enumValue
	)
	switch ev := e.(type) {
	case SelfConnectionStatus:
		field, v = "status", ev.Status
	case FriendStatus:
		field, v = "status", ev.Status
	case FriendConnectionStatus:
		field, v = "status", ev.Status
	case FriendMessage:
		field, v = "type", ev.Type
	case FileRecvControl:
		field, v = "control", ev.Control
	case FriendRequest:
		if ev.RawPublicKey == nil {
			return nil
		}
		return errors.OutOfRange(errors.PhaseTranslate, []string{e.Kind().String(), "public_key"},
			len(ev.RawPublicKey), native.PublicKeySize, native.PublicKeySize)
	case nil:
		return errors.InvalidArgument(errors.PhaseTranslate, nil, nil, "nil event")
	default:
		return nil
	}
	if v.Valid() {
		return nil
	}
	return errors.InvalidEnum(errors.PhaseTranslate, []string{e.Kind().String(), field}, v, enumTypeName(v))
}

func enumTypeName(v enumValue) string {
	switch v.(type) {
	case Connection:
		return "Connection"
	case UserStatus:
		return "UserStatus"
	case MessageType:
		return "MessageType"
	case FileControl:
		return "FileControl"
	}
	return "enum"
}
