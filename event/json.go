package event

import (
	"encoding/json"

	"github.com/wippyai/tox-bridge/errors"
)

// Records travel as {"kind": "<kind>", "data": {...}}. Enumerations encode
// as their lower-case names and byte fields as base64.

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Marshal encodes one record in its tagged form.
func Marshal(e Event) ([]byte, error) {
	if e == nil {
		return nil, errors.InvalidArgument(errors.PhaseTranslate, nil, nil, "nil event")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: e.Kind().String(), Data: data})
}

// MarshalBatch encodes a drained batch as a JSON array of tagged records.
func MarshalBatch(events []Event) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(events))
	for _, e := range events {
		b, err := Marshal(e)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return json.Marshal(out)
}

// Unmarshal decodes one tagged record.
func Unmarshal(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, errors.Wrap(errors.PhaseTranslate, errors.KindInvalidArgument, err, "decode event envelope")
	}
	k, ok := ParseKind(env.Kind)
	if !ok {
		return nil, errors.InvalidArgument(errors.PhaseTranslate, []string{"kind"}, env.Kind, "unknown event kind")
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("{}")
	}

	switch k {
	case KindSelfConnectionStatus:
		return decode[SelfConnectionStatus](env.Data)
	case KindFriendName:
		return decode[FriendName](env.Data)
	case KindFriendStatusMessage:
		return decode[FriendStatusMessage](env.Data)
	case KindFriendStatus:
		return decode[FriendStatus](env.Data)
	case KindFriendConnectionStatus:
		return decode[FriendConnectionStatus](env.Data)
	case KindFriendTyping:
		return decode[FriendTyping](env.Data)
	case KindFriendReadReceipt:
		return decode[FriendReadReceipt](env.Data)
	case KindFriendRequest:
		return decode[FriendRequest](env.Data)
	case KindFriendMessage:
		return decode[FriendMessage](env.Data)
	case KindFileRecvControl:
		return decode[FileRecvControl](env.Data)
	case KindFileChunkRequest:
		return decode[FileChunkRequest](env.Data)
	case KindFileRecv:
		return decode[FileRecv](env.Data)
	case KindFileRecvChunk:
		return decode[FileRecvChunk](env.Data)
	case KindFriendLossyPacket:
		return decode[FriendLossyPacket](env.Data)
	default:
		return decode[FriendLosslessPacket](env.Data)
	}
}

func decode[T Event](data json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var be *errors.Error
		if errors.As(err, &be) {
			return nil, be
		}
		return nil, errors.Wrap(errors.PhaseTranslate, errors.KindInvalidArgument, err, "decode "+v.Kind().String())
	}
	return v, nil
}

func (c Connection) MarshalText() ([]byte, error)  { return []byte(c.String()), nil }
func (s UserStatus) MarshalText() ([]byte, error)  { return []byte(s.String()), nil }
func (t MessageType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
func (c FileControl) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Connection) UnmarshalText(text []byte) error {
	v, ok := ParseConnection(string(text))
	if !ok {
		return errors.InvalidEnum(errors.PhaseTranslate, []string{"status"}, string(text), "Connection")
	}
	*c = v
	return nil
}

func (s *UserStatus) UnmarshalText(text []byte) error {
	v, ok := ParseUserStatus(string(text))
	if !ok {
		return errors.InvalidEnum(errors.PhaseTranslate, []string{"status"}, string(text), "UserStatus")
	}
	*s = v
	return nil
}

func (t *MessageType) UnmarshalText(text []byte) error {
	v, ok := ParseMessageType(string(text))
	if !ok {
		return errors.InvalidEnum(errors.PhaseTranslate, []string{"type"}, string(text), "MessageType")
	}
	*t = v
	return nil
}

func (c *FileControl) UnmarshalText(text []byte) error {
	v, ok := ParseFileControl(string(text))
	if !ok {
		return errors.InvalidEnum(errors.PhaseTranslate, []string{"control"}, string(text), "FileControl")
	}
	*c = v
	return nil
}
