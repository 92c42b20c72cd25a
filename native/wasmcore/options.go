package wasmcore

import (
	"encoding/binary"

	"github.com/wippyai/tox-bridge/native"
)

// optionsHeaderSize is the fixed part of the encoded options.
const optionsHeaderSize = 4 + 4*2 + 2*4

// EncodeOptions lays out opts for tox_new, little-endian:
//
//	u8  ipv6_enabled
//	u8  udp_enabled
//	u8  proxy_type
//	u8  savedata_type
//	u16 proxy_port
//	u16 start_port
//	u16 end_port
//	u16 tcp_port
//	u32 proxy_host length
//	u32 savedata length
//	    proxy_host bytes
//	    savedata bytes
//
// Ports must already be validated.
func EncodeOptions(opts native.Options) []byte {
	buf := make([]byte, optionsHeaderSize, optionsHeaderSize+len(opts.ProxyHost)+len(opts.Savedata))
	buf[0] = boolByte(opts.IPv6Enabled)
	buf[1] = boolByte(opts.UDPEnabled)
	buf[2] = byte(opts.ProxyType)
	buf[3] = byte(opts.SavedataType)
	binary.LittleEndian.PutUint16(buf[4:], uint16(opts.ProxyPort))
	binary.LittleEndian.PutUint16(buf[6:], uint16(opts.StartPort))
	binary.LittleEndian.PutUint16(buf[8:], uint16(opts.EndPort))
	binary.LittleEndian.PutUint16(buf[10:], uint16(opts.TCPPort))
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(opts.ProxyHost)))
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(opts.Savedata)))
	buf = append(buf, opts.ProxyHost...)
	buf = append(buf, opts.Savedata...)
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
