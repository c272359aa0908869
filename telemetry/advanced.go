package telemetry

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	gnet "github.com/shirou/gopsutil/v4/net"
	"go.uber.org/zap"
)

// connectionKinds são as tabelas de socket incluídas no relatório avançado.
var connectionKinds = []string{
	"inet",  // IPv4 e IPv6
	"inet4", // IPv4
	"inet6", // IPv6
	"tcp",   // TCP
	"tcp4",  // TCP sobre IPv4
	"tcp6",  // TCP sobre IPv6
	"udp",   // UDP
	"udp4",  // UDP sobre IPv4
	"udp6",  // UDP sobre IPv6
}

// AdvancedCollector monta o relatório avançado: estatísticas, link e gateway
// por interface, endereços decompostos e tabelas de socket por tipo.
type AdvancedCollector struct {
	logger *zap.Logger

	interfaces  func(ctx context.Context) (gnet.InterfaceStatList, error)
	connections func(ctx context.Context, kind string) ([]gnet.ConnectionStat, error)
	linkInfo    func(name string) (duplex string, speed int)
	gateways    func() map[string]string
}

func NewAdvancedCollector(logger *zap.Logger) *AdvancedCollector {
	return &AdvancedCollector{
		logger:      logger,
		interfaces:  gnet.InterfacesWithContext,
		connections: gnet.ConnectionsWithContext,
		linkInfo:    sysfsLinkInfo,
		gateways:    defaultGateways,
	}
}

func (c *AdvancedCollector) Collect(ctx context.Context) (any, error) {
	c.logger.Debug("generating advanced network report")

	ifaces, err := c.interfaces(ctx)
	if err != nil {
		c.logger.Error("interface enumeration failed", zap.Error(err))
		return nil, fmt.Errorf("collect interfaces: %w", err)
	}

	gws := c.gateways()

	stats := make(map[string]any, len(ifaces))
	addrs := make(map[string]any, len(ifaces))
	for _, iface := range ifaces {
		duplex, speed := c.linkInfo(iface.Name)
		stats[iface.Name] = map[string]any{
			"isup":            hasFlag(iface.Flags, "up"),
			"duplex":          duplex,
			"speed":           speed,
			"mtu":             iface.MTU,
			"flags":           strings.Join(iface.Flags, ","),
			"mac_address":     orNone(iface.HardwareAddr),
			"default_gateway": orNone(gws[iface.Name]),
		}

		list := make([]map[string]string, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			list = append(list, describeAddr(a.Addr))
		}
		addrs[iface.Name] = list
	}

	// uma tabela indisponível não derruba o relatório inteiro: o erro entra
	// no payload daquele kind, como os demais dados
	conns := make(map[string]any, len(connectionKinds))
	for _, kind := range connectionKinds {
		table, err := c.connections(ctx, kind)
		if err != nil {
			c.logger.Warn("socket table unavailable", zap.String("kind", kind), zap.Error(err))
			conns[kind] = map[string]string{"error": fmt.Sprintf("Error gathering connections for kind='%s'", kind)}
			continue
		}

		rows := make([]map[string]any, 0, len(table))
		for _, conn := range table {
			rows = append(rows, map[string]any{
				"fd":             conn.Fd,
				"family":         familyName(conn.Family),
				"type":           socketTypeName(conn.Type),
				"local_address":  formatAddr(conn.Laddr),
				"remote_address": formatAddr(conn.Raddr),
				"status":         conn.Status,
				"pid":            pidOrNone(conn.Pid),
			})
		}
		conns[kind] = rows
	}

	return map[string]any{
		"interface_stats": stats,
		"interface_addrs": addrs,
		"connections":     conns,
	}, nil
}

// sysfsLinkInfo lê duplex e velocidade do link em /sys/class/net. Interfaces
// virtuais (e sistemas sem sysfs) não expõem os arquivos; nesses casos o
// relatório mostra "unknown" e 0.
func sysfsLinkInfo(name string) (string, int) {
	duplex := "unknown"
	if raw, err := os.ReadFile("/sys/class/net/" + name + "/duplex"); err == nil {
		if v := strings.TrimSpace(string(raw)); v != "" {
			duplex = v
		}
	}
	speed := 0
	if raw, err := os.ReadFile("/sys/class/net/" + name + "/speed"); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(string(raw))); err == nil && v > 0 {
			speed = v
		}
	}
	return duplex, speed
}

// defaultGateways mapeia interface -> gateway default a partir de
// /proc/net/route (destino 00000000 marca a rota default).
func defaultGateways() map[string]string {
	out := map[string]string{}
	raw, err := os.ReadFile("/proc/net/route")
	if err != nil {
		return out
	}
	lines := strings.Split(string(raw), "\n")
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		if gw := hexIPv4(fields[2]); gw != "" {
			out[fields[0]] = gw
		}
	}
	return out
}

// hexIPv4 decodifica o endereço hex little-endian usado em /proc/net/route.
func hexIPv4(h string) string {
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil || v == 0 {
		return ""
	}
	return net.IPv4(byte(v), byte(v>>8), byte(v>>16), byte(v>>24)).String()
}

// describeAddr decompõe o CIDR reportado pela interface em família, endereço,
// máscara e broadcast (broadcast só para IPv4). Endereços sem prefixo entram
// como vieram.
func describeAddr(cidr string) map[string]string {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return map[string]string{
			"family":    ipFamily(net.ParseIP(cidr)),
			"address":   cidr,
			"netmask":   "None",
			"broadcast": "None",
		}
	}
	out := map[string]string{
		"family":    ipFamily(ip),
		"address":   ip.String(),
		"netmask":   net.IP(ipnet.Mask).String(),
		"broadcast": "None",
	}
	if v4 := ip.To4(); v4 != nil {
		out["broadcast"] = broadcastAddr(v4, ipnet.Mask)
	}
	return out
}

func ipFamily(ip net.IP) string {
	switch {
	case ip == nil:
		return "Unknown"
	case ip.To4() != nil:
		return "AF_INET"
	default:
		return "AF_INET6"
	}
}

func broadcastAddr(v4 net.IP, mask net.IPMask) string {
	m := mask
	if len(m) == 16 {
		m = m[12:]
	}
	b := make(net.IP, 4)
	for i := range b {
		b[i] = v4[i] | ^m[i]
	}
	return b.String()
}

func pidOrNone(pid int32) any {
	if pid == 0 {
		return "None"
	}
	return pid
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func orNone(v string) string {
	if v == "" {
		return "None"
	}
	return v
}

func formatAddr(a gnet.Addr) string {
	if a.IP == "" {
		return "None"
	}
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

// valores numéricos conforme o Linux; plataformas exóticas caem no default
func familyName(family uint32) string {
	switch family {
	case 1:
		return "AF_UNIX"
	case 2:
		return "AF_INET"
	case 10:
		return "AF_INET6"
	default:
		return fmt.Sprintf("%d", family)
	}
}

func socketTypeName(sockType uint32) string {
	switch sockType {
	case 1:
		return "SOCK_STREAM"
	case 2:
		return "SOCK_DGRAM"
	default:
		return fmt.Sprintf("%d", sockType)
	}
}
