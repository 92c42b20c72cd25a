package memcore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"sort"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/native"
)

// Action names understood by Call.
const (
	ActionBootstrap                = "bootstrap"
	ActionSelfGetName              = "self_get_name"
	ActionSelfSetName              = "self_set_name"
	ActionSelfGetStatusMessage     = "self_get_status_message"
	ActionSelfSetStatusMessage     = "self_set_status_message"
	ActionSelfGetPublicKey         = "self_get_public_key"
	ActionSelfSetTyping            = "self_set_typing"
	ActionFriendAddNorequest       = "friend_add_norequest"
	ActionFriendDelete             = "friend_delete"
	ActionFriendList               = "friend_list"
	ActionFriendSendMessage        = "friend_send_message"
	ActionFriendSendLosslessPacket = "friend_send_lossless_packet"
)

// Actions lists every action name Call accepts.
func Actions() []string {
	return []string{
		ActionBootstrap,
		ActionSelfGetName,
		ActionSelfSetName,
		ActionSelfGetStatusMessage,
		ActionSelfSetStatusMessage,
		ActionSelfGetPublicKey,
		ActionSelfSetTyping,
		ActionFriendAddNorequest,
		ActionFriendDelete,
		ActionFriendList,
		ActionFriendSendMessage,
		ActionFriendSendLosslessPacket,
	}
}

const defaultInterval = 50 * time.Millisecond

type friend struct {
	PublicKey []byte `json:"public_key"`
	Name      []byte `json:"name,omitempty"`
	Number    uint32 `json:"number"`
}

// Core is the in-memory native core. Iterate, Call and the savedata
// methods are serialized by the caller; Enqueue may be called from any
// goroutine.
type Core struct {
	logger        *zap.Logger
	friends       map[uint32]*friend
	pending       *queue.Queue
	name          []byte
	statusMessage []byte
	secretKey     [native.PublicKeySize]byte
	interval      time.Duration
	pendingMu     sync.Mutex
	nextFriend    uint32
	nextMessage   uint32
	transport     uint32
	bootstrapped  bool
	announced     bool
	killed        bool
}

var _ native.Core = (*Core)(nil)

func newCore(opts native.Options, cfg *Factory) (*Core, error) {
	c := &Core{
		logger:   cfg.logger,
		friends:  make(map[uint32]*friend),
		pending:  queue.New(),
		interval: cfg.interval,
	}
	if opts.UDPEnabled {
		c.transport = 2
	} else {
		c.transport = 1
	}

	switch opts.SavedataType {
	case native.SavedataNone:
		if _, err := rand.Read(c.secretKey[:]); err != nil {
			return nil, &native.NewError{Code: native.NewErrMalloc}
		}
	case native.SavedataSecretKey:
		if len(opts.Savedata) != len(c.secretKey) {
			return nil, &native.NewError{Code: native.NewErrLoadBadFormat}
		}
		copy(c.secretKey[:], opts.Savedata)
	case native.SavedataToxSave:
		if err := c.load(opts.Savedata); err != nil {
			c.logger.Debug("savedata rejected", zap.Error(err))
			return nil, &native.NewError{Code: native.NewErrLoadBadFormat}
		}
	default:
		return nil, &native.NewError{Code: native.NewErrLoadBadFormat}
	}
	return c, nil
}

// PublicKey derives the core's public key from its secret key.
func (c *Core) PublicKey() []byte {
	sum := sha256.Sum256(c.secretKey[:])
	return sum[:]
}

// Enqueue schedules fire to run during the next Iterate, as if a peer had
// sent something. Callbacks run in enqueue order.
func (c *Core) Enqueue(fire func(native.Callbacks)) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending.Add(fire)
}

// Pending returns the number of scheduled callbacks.
func (c *Core) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.pending.Length()
}

func (c *Core) takePending() []func(native.Callbacks) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	out := make([]func(native.Callbacks), 0, c.pending.Length())
	for c.pending.Length() > 0 {
		out = append(out, c.pending.Remove().(func(native.Callbacks)))
	}
	return out
}

// nextPending dequeues one scheduled callback.
func (c *Core) nextPending() (func(native.Callbacks), bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending.Length() == 0 {
		return nil, false
	}
	return c.pending.Remove().(func(native.Callbacks)), true
}

func (c *Core) alive(phase errors.Phase) error {
	if c.killed {
		return errors.Native(phase, "core used after kill", nil)
	}
	return nil
}

func (c *Core) Iterate(ctx context.Context, cb native.Callbacks) error {
	if err := c.alive(errors.PhaseDrain); err != nil {
		return err
	}
	if c.bootstrapped && !c.announced {
		c.announced = true
		cb.SelfConnectionStatus(c.transport)
	}
	// Callbacks enqueued during this step wait for the next one. A cancelled
	// step leaves the unfired callbacks queued.
	for n := c.Pending(); n > 0; n-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		fire, ok := c.nextPending()
		if !ok {
			break
		}
		fire(cb)
	}
	return nil
}

func (c *Core) IterationInterval() time.Duration {
	return c.interval
}

func (c *Core) Call(ctx context.Context, cb native.Callbacks, action string, args ...any) (any, error) {
	if err := c.alive(errors.PhaseInvoke); err != nil {
		return nil, err
	}
	c.logger.Debug("action", zap.String("action", action), zap.Int("args", len(args)))

	switch action {
	case ActionBootstrap:
		return c.bootstrap(args)
	case ActionSelfGetName:
		return clone(c.name), nil
	case ActionSelfSetName:
		b, err := argBytes(action, args, 0, "name")
		if err != nil {
			return nil, err
		}
		c.name = clone(b)
		return true, nil
	case ActionSelfGetStatusMessage:
		return clone(c.statusMessage), nil
	case ActionSelfSetStatusMessage:
		b, err := argBytes(action, args, 0, "message")
		if err != nil {
			return nil, err
		}
		c.statusMessage = clone(b)
		return true, nil
	case ActionSelfGetPublicKey:
		return c.PublicKey(), nil
	case ActionSelfSetTyping:
		if _, err := c.friendArg(action, args); err != nil {
			return nil, err
		}
		if _, err := argBool(action, args, 1, "typing"); err != nil {
			return nil, err
		}
		return true, nil
	case ActionFriendAddNorequest:
		return c.addFriend(args)
	case ActionFriendDelete:
		n, err := c.friendArg(action, args)
		if err != nil {
			return nil, err
		}
		delete(c.friends, n)
		return true, nil
	case ActionFriendList:
		out := make([]uint32, 0, len(c.friends))
		for n := range c.friends {
			out = append(out, n)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out, nil
	case ActionFriendSendMessage:
		return c.sendMessage(cb, args)
	case ActionFriendSendLosslessPacket:
		if _, err := c.friendArg(action, args); err != nil {
			return nil, err
		}
		data, err := argBytes(action, args, 1, "data")
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{action, "data"}, nil, "empty packet")
		}
		return true, nil
	}
	return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{"action"}, action, "unknown action")
}

func (c *Core) bootstrap(args []any) (any, error) {
	host, err := argBytes(ActionBootstrap, args, 0, "host")
	if err != nil {
		return nil, err
	}
	port, err := argUint32(ActionBootstrap, args, 1, "port")
	if err != nil {
		return nil, err
	}
	if len(host) == 0 {
		return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{ActionBootstrap, "host"}, "", "empty host")
	}
	if port == 0 || port > 65535 {
		return nil, errors.OutOfRange(errors.PhaseInvoke, []string{ActionBootstrap, "port"}, int(port), 1, 65535)
	}
	if len(args) > 2 {
		key, err := argBytes(ActionBootstrap, args, 2, "public_key")
		if err != nil {
			return nil, err
		}
		if len(key) != native.PublicKeySize {
			return nil, errors.OutOfRange(errors.PhaseInvoke, []string{ActionBootstrap, "public_key"},
				len(key), native.PublicKeySize, native.PublicKeySize)
		}
	}
	c.bootstrapped = true
	return true, nil
}

func (c *Core) friendArg(action string, args []any) (uint32, error) {
	n, err := argUint32(action, args, 0, "friend")
	if err != nil {
		return 0, err
	}
	if _, ok := c.friends[n]; !ok {
		return 0, errors.InvalidArgument(errors.PhaseInvoke, []string{action, "friend"}, n, "friend not found")
	}
	return n, nil
}

func (c *Core) addFriend(args []any) (any, error) {
	key, err := argBytes(ActionFriendAddNorequest, args, 0, "public_key")
	if err != nil {
		return nil, err
	}
	if len(key) != native.PublicKeySize {
		return nil, errors.OutOfRange(errors.PhaseInvoke, []string{ActionFriendAddNorequest, "public_key"},
			len(key), native.PublicKeySize, native.PublicKeySize)
	}
	for _, f := range c.friends {
		if string(f.PublicKey) == string(key) {
			return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{ActionFriendAddNorequest, "public_key"},
				nil, "already a friend")
		}
	}
	n := c.nextFriend
	c.nextFriend++
	c.friends[n] = &friend{Number: n, PublicKey: clone(key)}
	return n, nil
}

// sendMessage delivers to the loopback peer, which acknowledges at once: the
// read receipt fires before Call returns.
func (c *Core) sendMessage(cb native.Callbacks, args []any) (any, error) {
	n, err := c.friendArg(ActionFriendSendMessage, args)
	if err != nil {
		return nil, err
	}
	kind, err := argUint32(ActionFriendSendMessage, args, 1, "type")
	if err != nil {
		return nil, err
	}
	if kind > 1 {
		return nil, errors.InvalidEnum(errors.PhaseInvoke, []string{ActionFriendSendMessage, "type"}, kind, "MessageType")
	}
	msg, err := argBytes(ActionFriendSendMessage, args, 2, "message")
	if err != nil {
		return nil, err
	}
	if len(msg) == 0 {
		return nil, errors.InvalidArgument(errors.PhaseInvoke, []string{ActionFriendSendMessage, "message"}, nil, "empty message")
	}
	id := c.nextMessage
	c.nextMessage++
	cb.FriendReadReceipt(n, id)
	return id, nil
}

func (c *Core) SavedataSize(ctx context.Context) (int, error) {
	if err := c.alive(errors.PhaseSnapshot); err != nil {
		return 0, err
	}
	b, err := c.save()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *Core) Savedata(ctx context.Context, dst []byte) error {
	if err := c.alive(errors.PhaseSnapshot); err != nil {
		return err
	}
	b, err := c.save()
	if err != nil {
		return err
	}
	if len(dst) < len(b) {
		return errors.InvalidArgument(errors.PhaseSnapshot, []string{"dst"}, len(dst), "buffer smaller than savedata")
	}
	copy(dst, b)
	return nil
}

func (c *Core) Kill(ctx context.Context) error {
	if c.killed {
		return errors.Native(errors.PhaseKill, "core killed twice", nil)
	}
	c.killed = true
	c.friends = nil
	c.takePending()
	c.logger.Debug("core released")
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
