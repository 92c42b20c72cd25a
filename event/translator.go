package event

import (
	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/native"
)

// InvalidFunc is told about every enumeration value the translator could not
// map to a known case, and about malformed public keys.
type InvalidFunc func(kind Kind, field string, raw uint32)

// Translator turns native callback invocations into records appended to one
// Log. It implements native.Callbacks.
type Translator struct {
	log       *Log
	logger    *zap.Logger
	onInvalid InvalidFunc
}

var _ native.Callbacks = (*Translator)(nil)

// NewTranslator returns a translator writing into log. logger may be nil.
func NewTranslator(log *Log, logger *zap.Logger, onInvalid InvalidFunc) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{log: log, logger: logger, onInvalid: onInvalid}
}

// Log returns the log this translator appends to.
func (t *Translator) Log() *Log {
	return t.log
}

func (t *Translator) invalid(kind Kind, field string, raw uint32) {
	t.logger.Warn("native callback carried an unknown enum value",
		zap.Stringer("event", kind),
		zap.String("field", field),
		zap.Uint32("raw", raw))
	if t.onInvalid != nil {
		t.onInvalid(kind, field, raw)
	}
}

func (t *Translator) connection(kind Kind, raw uint32) Connection {
	c := Connection(raw)
	if !c.Valid() {
		t.invalid(kind, "status", raw)
	}
	return c
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (t *Translator) SelfConnectionStatus(status uint32) {
	t.log.Append(SelfConnectionStatus{Status: t.connection(KindSelfConnectionStatus, status)})
}

func (t *Translator) FriendName(friend uint32, name []byte) {
	t.log.Append(FriendName{Friend: friend, Name: clone(name)})
}

func (t *Translator) FriendStatusMessage(friend uint32, message []byte) {
	t.log.Append(FriendStatusMessage{Friend: friend, Message: clone(message)})
}

func (t *Translator) FriendStatus(friend uint32, status uint32) {
	s := UserStatus(status)
	if !s.Valid() {
		t.invalid(KindFriendStatus, "status", status)
	}
	t.log.Append(FriendStatus{Friend: friend, Status: s})
}

func (t *Translator) FriendConnectionStatus(friend uint32, status uint32) {
	t.log.Append(FriendConnectionStatus{Friend: friend, Status: t.connection(KindFriendConnectionStatus, status)})
}

func (t *Translator) FriendTyping(friend uint32, typing bool) {
	t.log.Append(FriendTyping{Friend: friend, IsTyping: typing})
}

func (t *Translator) FriendReadReceipt(friend uint32, messageID uint32) {
	t.log.Append(FriendReadReceipt{Friend: friend, MessageID: messageID})
}

func (t *Translator) FriendRequest(publicKey []byte, message []byte) {
	ev := FriendRequest{Message: clone(message)}
	if len(publicKey) != native.PublicKeySize {
		t.invalid(KindFriendRequest, "public_key", uint32(len(publicKey)))
		ev.RawPublicKey = clone(publicKey)
	} else {
		copy(ev.PublicKey[:], publicKey)
	}
	t.log.Append(ev)
}

func (t *Translator) FriendMessage(friend uint32, kind uint32, message []byte) {
	mt := MessageType(kind)
	if !mt.Valid() {
		t.invalid(KindFriendMessage, "type", kind)
	}
	t.log.Append(FriendMessage{Friend: friend, Type: mt, Message: clone(message)})
}

func (t *Translator) FileRecvControl(friend, file uint32, control uint32) {
	c := FileControl(control)
	if !c.Valid() {
		t.invalid(KindFileRecvControl, "control", control)
	}
	t.log.Append(FileRecvControl{Friend: friend, File: file, Control: c})
}

func (t *Translator) FileChunkRequest(friend, file uint32, position uint64, length uint32) {
	t.log.Append(FileChunkRequest{Friend: friend, File: file, Position: position, Length: length})
}

func (t *Translator) FileRecv(friend, file uint32, kind uint32, fileSize uint64, filename []byte) {
	t.log.Append(FileRecv{Friend: friend, File: file, FileKind: kind, FileSize: fileSize, Filename: clone(filename)})
}

func (t *Translator) FileRecvChunk(friend, file uint32, position uint64, data []byte) {
	t.log.Append(FileRecvChunk{Friend: friend, File: file, Position: position, Data: clone(data)})
}

func (t *Translator) FriendLossyPacket(friend uint32, data []byte) {
	t.log.Append(FriendLossyPacket{Friend: friend, Data: clone(data)})
}

func (t *Translator) FriendLosslessPacket(friend uint32, data []byte) {
	t.log.Append(FriendLosslessPacket{Friend: friend, Data: clone(data)})
}

// Dispatch replays a decoded record through the matching callback, so an
// externally observed event takes exactly the path a native one would.
func Dispatch(cb native.Callbacks, e Event) {
	switch ev := e.(type) {
	case SelfConnectionStatus:
		cb.SelfConnectionStatus(uint32(ev.Status))
	case FriendName:
		cb.FriendName(ev.Friend, ev.Name)
	case FriendStatusMessage:
		cb.FriendStatusMessage(ev.Friend, ev.Message)
	case FriendStatus:
		cb.FriendStatus(ev.Friend, uint32(ev.Status))
	case FriendConnectionStatus:
		cb.FriendConnectionStatus(ev.Friend, uint32(ev.Status))
	case FriendTyping:
		cb.FriendTyping(ev.Friend, ev.IsTyping)
	case FriendReadReceipt:
		cb.FriendReadReceipt(ev.Friend, ev.MessageID)
	case FriendRequest:
		cb.FriendRequest(ev.Key(), ev.Message)
	case FriendMessage:
		cb.FriendMessage(ev.Friend, uint32(ev.Type), ev.Message)
	case FileRecvControl:
		cb.FileRecvControl(ev.Friend, ev.File, uint32(ev.Control))
	case FileChunkRequest:
		cb.FileChunkRequest(ev.Friend, ev.File, ev.Position, ev.Length)
	case FileRecv:
		cb.FileRecv(ev.Friend, ev.File, ev.FileKind, ev.FileSize, ev.Filename)
	case FileRecvChunk:
		cb.FileRecvChunk(ev.Friend, ev.File, ev.Position, ev.Data)
	case FriendLossyPacket:
		cb.FriendLossyPacket(ev.Friend, ev.Data)
	case FriendLosslessPacket:
		cb.FriendLosslessPacket(ev.Friend, ev.Data)
	}
}
