// Package bridge is the operation set callers use to drive native sessions.
//
// A Bridge composes an instance.Table with the event translator:
//
//	b := bridge.New(memcore.NewFactory(), bridge.WithLogger(logger))
//
//	id, err := b.Create(ctx, native.DefaultOptions())
//	events, err := b.Drain(ctx, id)     // one native step, then read and clear
//	res, err := b.Invoke(ctx, id, "friend_send_message", uint32(0), uint32(0), []byte("hi"))
//	err = b.Kill(ctx, id)
//	err = b.Finalize(id)
//
// Every operation returns a *errors.Error whose Kind is one of
// allocation, invalid_argument, instance_not_found, instance_killed,
// instance_still_active or native. Option and enum arguments are checked
// before any native call is made.
//
// The Inject* operations feed externally observed events into a session's
// log. They take exactly the path a native callback would.
package bridge
