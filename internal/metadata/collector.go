package metadata

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"

	"EnigmaNetz/Enigma-Netsh-Capture/internal/version"
)

// maxHostIPs bounds the host_ips field on hosts with many adapters
const maxHostIPs = 10

// Host describes the machine a capture session ran on
type Host struct {
	MachineID    string
	Hostname     string
	OSName       string
	OSVersion    string
	Architecture string
	HostIPs      []string
	Version      string
}

// CollectHost gathers host details attached to session reports
func CollectHost() Host {
	hostname, _ := os.Hostname()
	return Host{
		MachineID:    generateMachineID(),
		Hostname:     hostname,
		OSName:       runtime.GOOS,
		OSVersion:    getOSVersion(),
		Architecture: runtime.GOARCH,
		HostIPs:      getHostIPAddresses(),
		Version:      version.Version,
	}
}

// NewSessionID returns a random identifier for one capture session
func NewSessionID() string {
	return uuid.New().String()
}

// Map flattens the host details into report metadata
func (h Host) Map() map[string]string {
	m := map[string]string{
		"machine_id":     h.MachineID,
		"hostname":       h.Hostname,
		"os_name":        h.OSName,
		"os_version":     h.OSVersion,
		"architecture":   h.Architecture,
		"sensor_version": h.Version,
	}
	if len(h.HostIPs) > 0 {
		m["host_ips"] = strings.Join(h.HostIPs, ",")
	}
	return m
}

// getHostIPAddresses returns private IPv4 addresses of up, non-loopback interfaces
func getHostIPAddresses() []string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var ips []string
	seen := make(map[string]bool)
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP.To4()
			if ip == nil || !ip.IsPrivate() || seen[ip.String()] {
				continue
			}
			seen[ip.String()] = true
			ips = append(ips, ip.String())
			if len(ips) >= maxHostIPs {
				return ips
			}
		}
	}
	return ips
}

// generateMachineID hashes the primary MAC address so it is stable per host
func generateMachineID() string {
	macAddr := getPrimaryMACAddress()
	if macAddr == "" {
		macAddr = "unknown-device"
	}
	sum := sha256.Sum256([]byte(macAddr))
	return hex.EncodeToString(sum[:])
}

// getPrimaryMACAddress prefers wired, then wireless adapters, in name order
func getPrimaryMACAddress() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	sort.Slice(interfaces, func(i, j int) bool {
		return interfaces[i].Name < interfaces[j].Name
	})

	usable := func(iface net.Interface) bool {
		return iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0
	}
	for _, prefix := range []string{"Ethernet", "eth", "en", "Wi-Fi", "wlan", "wl"} {
		for _, iface := range interfaces {
			if strings.HasPrefix(iface.Name, prefix) && usable(iface) {
				return iface.HardwareAddr.String()
			}
		}
	}
	for _, iface := range interfaces {
		if usable(iface) {
			return iface.HardwareAddr.String()
		}
	}
	return ""
}

func getOSVersion() string {
	switch runtime.GOOS {
	case "windows":
		return getWindowsVersion()
	case "linux":
		return getLinuxVersion()
	default:
		return runtime.GOOS
	}
}

// getWindowsVersion parses "Microsoft Windows [Version 10.0.19044.1766]"
func getWindowsVersion() string {
	output, err := exec.Command("cmd", "/c", "ver").Output()
	if err != nil {
		return "Windows"
	}
	ver := strings.TrimSpace(string(output))
	if _, after, ok := strings.Cut(ver, "Version"); ok {
		return "Windows " + strings.Trim(after, " []")
	}
	return "Windows"
}

func getLinuxVersion() string {
	file, err := os.Open("/etc/os-release")
	if err != nil {
		return "Linux"
	}
	defer file.Close()

	var name, ver string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "NAME=") {
			name = strings.Trim(strings.TrimPrefix(line, "NAME="), "\"")
		} else if strings.HasPrefix(line, "VERSION=") {
			ver = strings.Trim(strings.TrimPrefix(line, "VERSION="), "\"")
		}
	}
	switch {
	case name != "" && ver != "":
		return name + " " + ver
	case name != "":
		return name
	}
	return "Linux"
}
