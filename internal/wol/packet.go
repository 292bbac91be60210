// Package wol builds and sends Wake-on-LAN magic packets.
package wol

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
)

const (
	headerLen   = 6
	macRepeats  = 16
	PacketLen   = headerLen + macRepeats*6
	DefaultPort = 9
)

var ErrInvalidMAC = errors.New("invalid MAC address")

// ParseMAC accepts twelve hex digits, optionally grouped with ':', '-' or
// '.' separators.
func ParseMAC(s string) (net.HardwareAddr, error) {
	digits := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(s))
	if len(digits) != 12 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}

	b, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	return net.HardwareAddr(b), nil
}

// MagicPacket returns six 0xFF bytes followed by mac repeated sixteen times.
func MagicPacket(mac net.HardwareAddr) ([]byte, error) {
	if len(mac) != 6 {
		return nil, fmt.Errorf("%w: need 6 bytes, got %d", ErrInvalidMAC, len(mac))
	}

	packet := make([]byte, PacketLen)
	for i := 0; i < headerLen; i++ {
		packet[i] = 0xFF
	}
	for i := headerLen; i < PacketLen; i += len(mac) {
		copy(packet[i:], mac)
	}
	return packet, nil
}
