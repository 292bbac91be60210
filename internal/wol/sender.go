package wol

import (
	"context"
	"fmt"
	"net"
	"strconv"

	logrus "github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "WoL")

const DefaultBroadcast = "255.255.255.255"

// Sender writes magic packets to a broadcast address. A non-empty Interface
// binds the socket to that network device.
type Sender struct {
	Broadcast string
	Port      int
	Interface string
}

func NewSender(broadcast string, port int, iface string) *Sender {
	if broadcast == "" {
		broadcast = DefaultBroadcast
	}
	if port <= 0 {
		port = DefaultPort
	}
	return &Sender{Broadcast: broadcast, Port: port, Interface: iface}
}

func (s *Sender) Addr() string {
	return net.JoinHostPort(s.Broadcast, strconv.Itoa(s.Port))
}

// Send transmits one magic packet for mac as a single UDP datagram.
func (s *Sender) Send(ctx context.Context, mac net.HardwareAddr) error {
	packet, err := MagicPacket(mac)
	if err != nil {
		return err
	}

	var lc net.ListenConfig
	if s.Interface != "" {
		lc.Control = bindToDevice(s.Interface)
	}
	conn, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return fmt.Errorf("failed to create UDP socket: %w", err)
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", s.Addr(), err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.WriteTo(packet, dst); err != nil {
		return fmt.Errorf("failed to send WoL packet: %w", err)
	}

	if s.Interface != "" {
		log.Infof("Wake-on-LAN packet sent to %s via %s on %s", mac, s.Addr(), s.Interface)
	} else {
		log.Infof("Wake-on-LAN packet sent to %s via %s", mac, s.Addr())
	}
	return nil
}
