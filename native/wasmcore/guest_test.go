package wasmcore

// guestBuilder assembles the small test guest used by this package's tests.
// It only knows the handful of sections the guest needs.

const (
	secType     = 0x01
	secImport   = 0x02
	secFunction = 0x03
	secMemory   = 0x05
	secGlobal   = 0x06
	secExport   = 0x07
	secCode     = 0x0a
	secData     = 0x0b

	valI32   = 0x7f
	funcType = 0x60
	kindFunc = 0x00
	kindMem  = 0x02
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(body)))...)
	return append(out, body...)
}

func fnType(params, results int) []byte {
	out := []byte{funcType}
	out = append(out, uleb(uint32(params))...)
	for i := 0; i < params; i++ {
		out = append(out, valI32)
	}
	out = append(out, uleb(uint32(results))...)
	for i := 0; i < results; i++ {
		out = append(out, valI32)
	}
	return out
}

func body(code ...byte) []byte {
	b := append([]byte{0x00}, code...) // no locals
	return append(uleb(uint32(len(b))), b...)
}

func export(n string, kind byte, idx uint32) []byte {
	return append(append(name(n), kind), uleb(idx)...)
}

// testGuest returns a guest whose:
//   - tox_new fails with code 2 (malloc) when UDP is disabled
//   - tox_iterate fires self_connection_status(udp) then a friend request
//     from the all-zero key with message "hi"
//   - tox_friend_send_message echoes the message back as friend_message and
//     returns 7
//   - savedata is the four bytes "SAVE"
func testGuest() []byte {
	// self_connection_status(udp); friend_request(key=0, msg=32, len=2)
	return buildGuest(body(0x41, 0x02, 0x10, 0x00,
		0x41, 0x00, 0x41, 0x20, 0x41, 0x02, 0x10, 0x01, 0x0b))
}

// outOfBoundsGuest is testGuest with a tox_iterate that fires
// friend_request with a message range running past the single memory page.
func outOfBoundsGuest() []byte {
	// friend_request(key=0, msg=65520, len=256)
	return buildGuest(body(0x41, 0x00, 0x41, 0xf0, 0xff, 0x03, 0x41, 0x80, 0x02, 0x10, 0x01, 0x0b))
}

func buildGuest(iterate []byte) []byte {
	types := vec(
		fnType(1, 0), // 0: (i32)
		fnType(3, 0), // 1: (i32 i32 i32)
		fnType(4, 0), // 2: (i32 i32 i32 i32)
		fnType(1, 1), // 3: (i32) -> i32
		fnType(2, 1), // 4: (i32 i32) -> i32
		fnType(2, 0), // 5: (i32 i32)
		fnType(5, 1), // 6: (i32 x5) -> i32
	)

	imp := func(field string, typeIdx uint32) []byte {
		out := append(name(HostModule), name(field)...)
		out = append(out, kindFunc)
		return append(out, uleb(typeIdx)...)
	}
	imports := vec(
		imp("self_connection_status", 0), // func 0
		imp("friend_request", 1),         // func 1
		imp("friend_message", 2),         // func 2
	)

	// funcs 3..10
	funcs := vec(uleb(3), uleb(4), uleb(0), uleb(0), uleb(3), uleb(3), uleb(5), uleb(6))

	memory := vec([]byte{0x00, 0x01})

	// bump pointer starting at 4096
	globals := vec([]byte{valI32, 0x01, 0x41, 0x80, 0x20, 0x0b})

	exports := vec(
		export("memory", kindMem, 0),
		export("alloc", kindFunc, 3),
		export("tox_new", kindFunc, 4),
		export("tox_kill", kindFunc, 5),
		export("tox_iterate", kindFunc, 6),
		export("tox_iteration_interval", kindFunc, 7),
		export("tox_get_savedata_size", kindFunc, 8),
		export("tox_get_savedata", kindFunc, 9),
		export("tox_friend_send_message", kindFunc, 10),
	)

	code := vec(
		// alloc: old := g0; g0 += size; return old
		body(0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b),
		// tox_new: udp byte at opts+1; zero -> -2, else handle 1
		body(0x20, 0x00, 0x2d, 0x00, 0x01, 0x45,
			0x04, valI32, 0x41, 0x7e, 0x05, 0x41, 0x01, 0x0b, 0x0b),
		// tox_kill
		body(0x0b),
		iterate,
		// tox_iteration_interval: 50ms
		body(0x41, 0x32, 0x0b),
		// tox_get_savedata_size: 4
		body(0x41, 0x04, 0x0b),
		// tox_get_savedata: *ptr = *(i32*)64
		body(0x20, 0x01, 0x41, 0xc0, 0x00, 0x28, 0x02, 0x00, 0x36, 0x02, 0x00, 0x0b),
		// tox_friend_send_message(h, friend, type, ptr, len)
		body(0x20, 0x01, 0x20, 0x02, 0x20, 0x03, 0x20, 0x04, 0x10, 0x02, 0x41, 0x07, 0x0b),
	)

	data := vec(
		append([]byte{0x00, 0x41, 0x20, 0x0b}, name("hi")...),
		append([]byte{0x00, 0x41, 0xc0, 0x00, 0x0b}, name("SAVE")...),
	)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(secType, types)...)
	out = append(out, section(secImport, imports)...)
	out = append(out, section(secFunction, funcs)...)
	out = append(out, section(secMemory, memory)...)
	out = append(out, section(secGlobal, globals)...)
	out = append(out, section(secExport, exports)...)
	out = append(out, section(secCode, code)...)
	out = append(out, section(secData, data)...)
	return out
}
