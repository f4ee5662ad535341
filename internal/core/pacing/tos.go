package pacing

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ApplyTypeOfService 为连接设置 IP TOS（IPv6 为 Traffic Class）
//
// 仅支持 TCP/UDP 连接。
func ApplyTypeOfService(c net.Conn, tos int) error {
	ip, err := localIP(c)
	if err != nil {
		return err
	}

	if ip.To4() != nil {
		if err := ipv4.NewConn(c).SetTOS(tos); err != nil {
			return fmt.Errorf("set ipv4 tos: %w", err)
		}
		return nil
	}
	if err := ipv6.NewConn(c).SetTrafficClass(tos); err != nil {
		return fmt.Errorf("set ipv6 traffic class: %w", err)
	}
	return nil
}

// TypeOfService 读取连接当前的 IP TOS（IPv6 为 Traffic Class）
func TypeOfService(c net.Conn) (int, error) {
	ip, err := localIP(c)
	if err != nil {
		return 0, err
	}
	if ip.To4() != nil {
		return ipv4.NewConn(c).TOS()
	}
	return ipv6.NewConn(c).TrafficClass()
}

func localIP(c net.Conn) (net.IP, error) {
	switch addr := c.LocalAddr().(type) {
	case *net.TCPAddr:
		return addr.IP, nil
	case *net.UDPAddr:
		return addr.IP, nil
	default:
		return nil, ErrTOSUnsupported
	}
}
