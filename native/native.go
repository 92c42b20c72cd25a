// Package native defines the contract between the bridge and the native
// collaborator that owns the real communication core.
//
// The bridge never looks inside a Core. It creates one through a Factory,
// drives it with Iterate and Call, extracts savedata, and tears it down with
// Kill. While Iterate or Call runs, the core reports what happened by calling
// the Callbacks it was given, synchronously and on the calling goroutine.
package native

import (
	"context"
	"fmt"
	"time"
)

// PublicKeySize is the length of a peer's long-term public key.
const PublicKeySize = 32

// ProxyType selects how the core reaches the network.
type ProxyType uint32

const (
	ProxyNone ProxyType = iota
	ProxyHTTP
	ProxySOCKS5
)

func (p ProxyType) Valid() bool { return p <= ProxySOCKS5 }

func (p ProxyType) String() string {
	switch p {
	case ProxyNone:
		return "none"
	case ProxyHTTP:
		return "http"
	case ProxySOCKS5:
		return "socks5"
	}
	return fmt.Sprintf("ProxyType(%d)", uint32(p))
}

// SavedataType describes the bytes in Options.Savedata.
type SavedataType uint32

const (
	SavedataNone SavedataType = iota
	SavedataToxSave
	SavedataSecretKey
)

func (s SavedataType) Valid() bool { return s <= SavedataSecretKey }

func (s SavedataType) String() string {
	switch s {
	case SavedataNone:
		return "none"
	case SavedataToxSave:
		return "tox_save"
	case SavedataSecretKey:
		return "secret_key"
	}
	return fmt.Sprintf("SavedataType(%d)", uint32(s))
}

// Options is the creation request for a Core. Ports are plain ints so that
// out-of-range values survive until validation.
type Options struct {
	ProxyHost    string       `json:"proxy_host" yaml:"proxy_host"`
	Savedata     []byte       `json:"savedata,omitempty" yaml:"-"`
	ProxyType    ProxyType    `json:"proxy_type" yaml:"proxy_type"`
	SavedataType SavedataType `json:"savedata_type" yaml:"savedata_type"`
	ProxyPort    int          `json:"proxy_port" yaml:"proxy_port"`
	StartPort    int          `json:"start_port" yaml:"start_port"`
	EndPort      int          `json:"end_port" yaml:"end_port"`
	TCPPort      int          `json:"tcp_port" yaml:"tcp_port"`
	IPv6Enabled  bool         `json:"ipv6_enabled" yaml:"ipv6_enabled"`
	UDPEnabled   bool         `json:"udp_enabled" yaml:"udp_enabled"`
}

// DefaultOptions returns the options a core uses when nothing is configured.
func DefaultOptions() Options {
	return Options{
		IPv6Enabled: true,
		UDPEnabled:  true,
		StartPort:   33445,
		EndPort:     33545,
	}
}

// NewErrorCode is the failure code reported by a Factory.
type NewErrorCode uint32

const (
	NewErrNull NewErrorCode = iota + 1
	NewErrMalloc
	NewErrPortAlloc
	NewErrProxyBadType
	NewErrProxyBadHost
	NewErrProxyBadPort
	NewErrProxyNotFound
	NewErrLoadEncrypted
	NewErrLoadBadFormat
)

var newErrorNames = map[NewErrorCode]string{
	NewErrNull:          "null",
	NewErrMalloc:        "malloc",
	NewErrPortAlloc:     "port_alloc",
	NewErrProxyBadType:  "proxy_bad_type",
	NewErrProxyBadHost:  "proxy_bad_host",
	NewErrProxyBadPort:  "proxy_bad_port",
	NewErrProxyNotFound: "proxy_not_found",
	NewErrLoadEncrypted: "load_encrypted",
	NewErrLoadBadFormat: "load_bad_format",
}

func (c NewErrorCode) String() string {
	if s, ok := newErrorNames[c]; ok {
		return s
	}
	return fmt.Sprintf("NewErrorCode(%d)", uint32(c))
}

// NewError is returned by a Factory that could not create a core.
type NewError struct {
	Code NewErrorCode
}

func (e *NewError) Error() string {
	return "tox_new: " + e.Code.String()
}

// Factory creates native cores.
type Factory interface {
	New(ctx context.Context, opts Options) (Core, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, opts Options) (Core, error)

func (f FactoryFunc) New(ctx context.Context, opts Options) (Core, error) {
	return f(ctx, opts)
}

// Core is one live native instance. Implementations need not be safe for
// concurrent use; the bridge serializes every call on a Core.
type Core interface {
	// Iterate runs one processing step, firing callbacks inline.
	Iterate(ctx context.Context, cb Callbacks) error

	// IterationInterval is how long the caller should wait before the next Iterate.
	IterationInterval() time.Duration

	// Call runs a named action. It may fire callbacks before returning.
	Call(ctx context.Context, cb Callbacks, action string, args ...any) (any, error)

	// SavedataSize returns the number of bytes Savedata will write.
	SavedataSize(ctx context.Context) (int, error)

	// Savedata writes the serialized state into dst, which holds SavedataSize bytes.
	Savedata(ctx context.Context, dst []byte) error

	// Kill releases the native instance. The Core must not be used afterwards.
	Kill(ctx context.Context) error
}

// Callbacks receives native events with already-decoded primitive arguments.
// Enumeration arguments are the raw native values; byte slices are only valid
// for the duration of the call.
type Callbacks interface {
	SelfConnectionStatus(status uint32)
	FriendName(friend uint32, name []byte)
	FriendStatusMessage(friend uint32, message []byte)
	FriendStatus(friend uint32, status uint32)
	FriendConnectionStatus(friend uint32, status uint32)
	FriendTyping(friend uint32, typing bool)
	FriendReadReceipt(friend uint32, messageID uint32)
	FriendRequest(publicKey []byte, message []byte)
	FriendMessage(friend uint32, kind uint32, message []byte)
	FileRecvControl(friend, file uint32, control uint32)
	FileChunkRequest(friend, file uint32, position uint64, length uint32)
	FileRecv(friend, file uint32, kind uint32, fileSize uint64, filename []byte)
	FileRecvChunk(friend, file uint32, position uint64, data []byte)
	FriendLossyPacket(friend uint32, data []byte)
	FriendLosslessPacket(friend uint32, data []byte)
}
