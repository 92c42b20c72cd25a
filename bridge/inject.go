package bridge

import (
	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/instance"
	"github.com/wippyai/tox-bridge/native"
)

func (b *Bridge) inject(id instance.ID, kind event.Kind, fire func(cb native.Callbacks)) error {
	err := b.table.WithActive(errors.PhaseInject, id, func(s *instance.Session) error {
		fire(s.Callbacks())
		return nil
	})
	b.recorder.ObserveInject(kind, err)
	return err
}

func badEnum(kind event.Kind, field string, raw uint32, enumType string) error {
	return errors.InvalidEnum(errors.PhaseInject, []string{kind.String(), field}, raw, enumType)
}

func (b *Bridge) InjectSelfConnectionStatus(id instance.ID, status event.Connection) error {
	if !status.Valid() {
		return badEnum(event.KindSelfConnectionStatus, "status", uint32(status), "Connection")
	}
	return b.inject(id, event.KindSelfConnectionStatus, func(cb native.Callbacks) {
		cb.SelfConnectionStatus(uint32(status))
	})
}

func (b *Bridge) InjectFriendName(id instance.ID, friend uint32, name []byte) error {
	return b.inject(id, event.KindFriendName, func(cb native.Callbacks) {
		cb.FriendName(friend, name)
	})
}

func (b *Bridge) InjectFriendStatusMessage(id instance.ID, friend uint32, message []byte) error {
	return b.inject(id, event.KindFriendStatusMessage, func(cb native.Callbacks) {
		cb.FriendStatusMessage(friend, message)
	})
}

func (b *Bridge) InjectFriendStatus(id instance.ID, friend uint32, status event.UserStatus) error {
	if !status.Valid() {
		return badEnum(event.KindFriendStatus, "status", uint32(status), "UserStatus")
	}
	return b.inject(id, event.KindFriendStatus, func(cb native.Callbacks) {
		cb.FriendStatus(friend, uint32(status))
	})
}

func (b *Bridge) InjectFriendConnectionStatus(id instance.ID, friend uint32, status event.Connection) error {
	if !status.Valid() {
		return badEnum(event.KindFriendConnectionStatus, "status", uint32(status), "Connection")
	}
	return b.inject(id, event.KindFriendConnectionStatus, func(cb native.Callbacks) {
		cb.FriendConnectionStatus(friend, uint32(status))
	})
}

func (b *Bridge) InjectFriendTyping(id instance.ID, friend uint32, typing bool) error {
	return b.inject(id, event.KindFriendTyping, func(cb native.Callbacks) {
		cb.FriendTyping(friend, typing)
	})
}

func (b *Bridge) InjectFriendReadReceipt(id instance.ID, friend, messageID uint32) error {
	return b.inject(id, event.KindFriendReadReceipt, func(cb native.Callbacks) {
		cb.FriendReadReceipt(friend, messageID)
	})
}

// InjectFriendRequest requires a public key of exactly native.PublicKeySize bytes.
func (b *Bridge) InjectFriendRequest(id instance.ID, publicKey, message []byte) error {
	if len(publicKey) != native.PublicKeySize {
		return errors.OutOfRange(errors.PhaseInject, []string{event.KindFriendRequest.String(), "public_key"},
			len(publicKey), native.PublicKeySize, native.PublicKeySize)
	}
	return b.inject(id, event.KindFriendRequest, func(cb native.Callbacks) {
		cb.FriendRequest(publicKey, message)
	})
}

func (b *Bridge) InjectFriendMessage(id instance.ID, friend uint32, kind event.MessageType, message []byte) error {
	if !kind.Valid() {
		return badEnum(event.KindFriendMessage, "type", uint32(kind), "MessageType")
	}
	return b.inject(id, event.KindFriendMessage, func(cb native.Callbacks) {
		cb.FriendMessage(friend, uint32(kind), message)
	})
}

func (b *Bridge) InjectFileRecvControl(id instance.ID, friend, file uint32, control event.FileControl) error {
	if !control.Valid() {
		return badEnum(event.KindFileRecvControl, "control", uint32(control), "FileControl")
	}
	return b.inject(id, event.KindFileRecvControl, func(cb native.Callbacks) {
		cb.FileRecvControl(friend, file, uint32(control))
	})
}

func (b *Bridge) InjectFileChunkRequest(id instance.ID, friend, file uint32, position uint64, length uint32) error {
	return b.inject(id, event.KindFileChunkRequest, func(cb native.Callbacks) {
		cb.FileChunkRequest(friend, file, position, length)
	})
}

func (b *Bridge) InjectFileRecv(id instance.ID, friend, file, kind uint32, fileSize uint64, filename []byte) error {
	return b.inject(id, event.KindFileRecv, func(cb native.Callbacks) {
		cb.FileRecv(friend, file, kind, fileSize, filename)
	})
}

func (b *Bridge) InjectFileRecvChunk(id instance.ID, friend, file uint32, position uint64, data []byte) error {
	return b.inject(id, event.KindFileRecvChunk, func(cb native.Callbacks) {
		cb.FileRecvChunk(friend, file, position, data)
	})
}

func (b *Bridge) InjectFriendLossyPacket(id instance.ID, friend uint32, data []byte) error {
	return b.inject(id, event.KindFriendLossyPacket, func(cb native.Callbacks) {
		cb.FriendLossyPacket(friend, data)
	})
}

func (b *Bridge) InjectFriendLosslessPacket(id instance.ID, friend uint32, data []byte) error {
	return b.inject(id, event.KindFriendLosslessPacket, func(cb native.Callbacks) {
		cb.FriendLosslessPacket(friend, data)
	})
}

// InjectEvent injects a decoded record through the matching Inject operation.
func (b *Bridge) InjectEvent(id instance.ID, e event.Event) error {
	switch ev := e.(type) {
	case event.SelfConnectionStatus:
		return b.InjectSelfConnectionStatus(id, ev.Status)
	case event.FriendName:
		return b.InjectFriendName(id, ev.Friend, ev.Name)
	case event.FriendStatusMessage:
		return b.InjectFriendStatusMessage(id, ev.Friend, ev.Message)
	case event.FriendStatus:
		return b.InjectFriendStatus(id, ev.Friend, ev.Status)
	case event.FriendConnectionStatus:
		return b.InjectFriendConnectionStatus(id, ev.Friend, ev.Status)
	case event.FriendTyping:
		return b.InjectFriendTyping(id, ev.Friend, ev.IsTyping)
	case event.FriendReadReceipt:
		return b.InjectFriendReadReceipt(id, ev.Friend, ev.MessageID)
	case event.FriendRequest:
		return b.InjectFriendRequest(id, ev.Key(), ev.Message)
	case event.FriendMessage:
		return b.InjectFriendMessage(id, ev.Friend, ev.Type, ev.Message)
	case event.FileRecvControl:
		return b.InjectFileRecvControl(id, ev.Friend, ev.File, ev.Control)
	case event.FileChunkRequest:
		return b.InjectFileChunkRequest(id, ev.Friend, ev.File, ev.Position, ev.Length)
	case event.FileRecv:
		return b.InjectFileRecv(id, ev.Friend, ev.File, ev.FileKind, ev.FileSize, ev.Filename)
	case event.FileRecvChunk:
		return b.InjectFileRecvChunk(id, ev.Friend, ev.File, ev.Position, ev.Data)
	case event.FriendLossyPacket:
		return b.InjectFriendLossyPacket(id, ev.Friend, ev.Data)
	case event.FriendLosslessPacket:
		return b.InjectFriendLosslessPacket(id, ev.Friend, ev.Data)
	case nil:
		return errors.InvalidArgument(errors.PhaseInject, nil, nil, "nil event")
	}
	return errors.InvalidArgument(errors.PhaseInject, nil, e, "unsupported event type")
}
