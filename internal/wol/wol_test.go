package wol

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMAC(t *testing.T) {
	t.Parallel()

	want := net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "colons", input: "AA:BB:CC:DD:EE:FF"},
		{name: "dashes", input: "aa-bb-cc-dd-ee-ff"},
		{name: "dotted", input: "aabb.ccdd.eeff"},
		{name: "bare", input: "AABBCCDDEEFF"},
		{name: "surrounding space", input: "  aa:bb:cc:dd:ee:ff\n"},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "AA:BB:CC:DD:EE", wantErr: true},
		{name: "too long", input: "AA:BB:CC:DD:EE:FF:00", wantErr: true},
		{name: "not hex", input: "GG:BB:CC:DD:EE:FF", wantErr: true},
		{name: "odd separator", input: "AA/BB/CC/DD/EE/FF", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mac, err := ParseMAC(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMAC)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, mac)
		})
	}
}

func TestMagicPacket(t *testing.T) {
	t.Parallel()

	mac, err := ParseMAC("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	packet, err := MagicPacket(mac)
	require.NoError(t, err)
	require.Len(t, packet, 102)

	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 6), packet[:6])
	for i := 0; i < 16; i++ {
		off := 6 + i*6
		assert.Equal(t, []byte(mac), packet[off:off+6], "repetition %d", i)
	}

	_, err = MagicPacket(net.HardwareAddr{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidMAC)
}

func TestSenderDefaults(t *testing.T) {
	t.Parallel()

	s := NewSender("", 0, "")
	assert.Equal(t, "255.255.255.255:9", s.Addr())
	assert.Equal(t, "192.168.1.255:7", NewSender("192.168.1.255", 7, "").Addr())
}

func TestSenderSendsOneDatagram(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	port := pc.LocalAddr().(*net.UDPAddr).Port
	mac := net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, NewSender("127.0.0.1", port, "").Send(ctx, mac))

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	want, _ := MagicPacket(mac)
	assert.Equal(t, want, buf[:n])
}

func TestSenderRejectsBadAddress(t *testing.T) {
	t.Parallel()

	s := &Sender{Broadcast: "not an address", Port: 9}
	err := s.Send(context.Background(), net.HardwareAddr{1, 2, 3, 4, 5, 6})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve")
}

type countingSender struct {
	sent int
	err  error
}

func (s *countingSender) Send(context.Context, net.HardwareAddr) error {
	if s.err != nil {
		return s.err
	}
	s.sent++
	return nil
}

func TestGuard(t *testing.T) {
	t.Parallel()

	inner := &countingSender{}
	g := NewGuard(inner, 30*time.Second, 2)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	ctx := context.Background()

	require.NoError(t, g.Send(ctx, mac))

	now = now.Add(10 * time.Second)
	err := g.Send(ctx, mac)
	assert.ErrorIs(t, err, ErrCooldown)
	assert.Contains(t, err.Error(), "20s remaining")

	now = now.Add(20 * time.Second)
	require.NoError(t, g.Send(ctx, mac))

	now = now.Add(time.Minute)
	assert.ErrorIs(t, g.Send(ctx, mac), ErrMaxAttempts)
	assert.Equal(t, 2, inner.sent)
	assert.Equal(t, 2, g.Attempts())

	g.Reset()
	require.NoError(t, g.Send(ctx, mac))
	assert.Equal(t, 1, g.Attempts())
}

func TestGuardFailedSendIsNotAnAttempt(t *testing.T) {
	t.Parallel()

	boom := errors.New("network unreachable")
	inner := &countingSender{err: boom}
	g := NewGuard(inner, time.Hour, 1)

	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	assert.ErrorIs(t, g.Send(context.Background(), mac), boom)
	assert.Equal(t, 0, g.Attempts())

	inner.err = nil
	assert.NoError(t, g.Send(context.Background(), mac))
}

func TestGuardUnlimited(t *testing.T) {
	t.Parallel()

	inner := &countingSender{}
	g := NewGuard(inner, 0, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, g.Send(context.Background(), net.HardwareAddr{1, 2, 3, 4, 5, 6}))
	}
	assert.Equal(t, 5, inner.sent)
}
