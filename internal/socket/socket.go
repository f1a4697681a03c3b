//go:build unix

// File: internal/socket/socket.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Raw listening-socket setup and sockaddr decoding on top of x/sys/unix.
// All five servers go through ListenTCP; the completion core additionally
// decodes the raw sockaddr storage its asynchronous accepts are filled with.

package socket

import (
	"fmt"
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ListenTCP creates a TCP listening socket bound to 0.0.0.0:port and returns
// its descriptor. SO_REUSEADDR is set so a restarted server can rebind the
// address immediately.
func ListenTCP(port, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind port %d: %w", port, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listen: %w", err)
	}
	return fd, nil
}

// Port returns the local port a socket is bound to. Useful when binding
// port 0 and letting the kernel pick.
func Port(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, fmt.Errorf("getsockname: %w", err)
	}
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return sa.Port, nil
	case *unix.SockaddrInet6:
		return sa.Port, nil
	}
	return 0, fmt.Errorf("getsockname: not an inet socket")
}

// SockaddrTCP converts a unix.Sockaddr returned by a synchronous accept
// into a net.Addr for logging.
func SockaddrTCP(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port, Zone: zoneName(sa.ZoneId)}
	}
	return nil
}

// TCPAddr decodes the raw sockaddr storage an asynchronous accept was
// pointed at. The kernel writes the peer address in network byte order;
// saLen is the length it reported back.
func TCPAddr(raw *unix.RawSockaddrAny, saLen uint32) *net.TCPAddr {
	if raw == nil || saLen == 0 {
		return nil
	}
	switch raw.Addr.Family {
	case unix.AF_INET:
		sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(raw))
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: int(ntohs(sa.Port))}
	case unix.AF_INET6:
		sa := (*unix.RawSockaddrInet6)(unsafe.Pointer(raw))
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: int(ntohs(sa.Port)), Zone: zoneName(sa.Scope_id)}
	}
	return nil
}

// ntohs converts a network-order uint16 to host order regardless of host
// endianness.
func ntohs(v uint16) uint16 {
	b := (*[2]byte)(unsafe.Pointer(&v))
	return uint16(b[0])<<8 | uint16(b[1])
}

func zoneName(id uint32) string {
	if id == 0 {
		return ""
	}
	ifi, err := net.InterfaceByIndex(int(id))
	if err != nil {
		return ""
	}
	return ifi.Name
}
