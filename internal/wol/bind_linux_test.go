//go:build linux

package wol

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// skipIfNotPermitted skips on kernels that still reserve SO_BINDTODEVICE
// for CAP_NET_RAW.
func skipIfNotPermitted(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, unix.EPERM) {
		t.Skipf("binding to a device is not permitted here: %v", err)
	}
}

func TestBindToDevice(t *testing.T) {
	t.Parallel()

	lc := net.ListenConfig{Control: bindToDevice("lo")}
	pc, err := lc.ListenPacket(context.Background(), "udp4", "127.0.0.1:0")
	skipIfNotPermitted(t, err)
	require.NoError(t, err)
	defer pc.Close()

	raw, err := pc.(*net.UDPConn).SyscallConn()
	require.NoError(t, err)

	var device string
	var sockErr error
	require.NoError(t, raw.Control(func(fd uintptr) {
		device, sockErr = unix.GetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE)
	}))
	require.NoError(t, sockErr)
	assert.Equal(t, "lo", device)
}

func TestSenderSendsThroughInterface(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	port := pc.LocalAddr().(*net.UDPAddr).Port
	mac := net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = NewSender("127.0.0.1", port, "lo").Send(ctx, mac)
	skipIfNotPermitted(t, err)
	require.NoError(t, err)

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	want, _ := MagicPacket(mac)
	assert.Equal(t, want, buf[:n])
}

func TestSenderRejectsUnknownInterface(t *testing.T) {
	t.Parallel()

	err := NewSender("127.0.0.1", DefaultPort, "nosuchdev0").Send(context.Background(), net.HardwareAddr{1, 2, 3, 4, 5, 6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nosuchdev0")
}
