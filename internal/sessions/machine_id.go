package sessions

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

const passwordSalt = "lazymy-keyring-salt-v1"

// deriveFilePassword returns the passphrase of the file keyring backend.
// It depends only on the machine and the user, so it is stable across runs.
func deriveFilePassword() (string, error) {
	machineID, err := machineID()
	if err != nil {
		machineID, _ = os.Hostname()
	}

	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = fmt.Sprintf("uid-%d", os.Getuid())
	}

	hash := sha256.Sum256([]byte(machineID + username + passwordSalt))
	return base64.StdEncoding.EncodeToString(hash[:]), nil
}

func machineID() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return linuxMachineID()
	case "darwin":
		return commandMachineID("IOPlatformUUID", "ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
	case "windows":
		return commandMachineID("", "wmic", "csproduct", "get", "UUID")
	default:
		return os.Hostname()
	}
}

func linuxMachineID() (string, error) {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data)), nil
		}
	}
	return os.Hostname()
}

// commandMachineID runs a platform tool and picks the identifier from its
// output: the value of the `marker = "..."` line, or the first non-header line
// when marker is empty.
func commandMachineID(marker, name string, args ...string) (string, error) {
	output, err := exec.Command(name, args...).Output()
	if err != nil {
		return os.Hostname()
	}
	return parseMachineID(string(output), marker)
}

func parseMachineID(output, marker string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if marker == "" {
			if line != "UUID" {
				return line, nil
			}
			continue
		}
		if strings.Contains(line, marker) {
			if _, value, ok := strings.Cut(line, "="); ok {
				return strings.Trim(strings.TrimSpace(value), `"`), nil
			}
		}
	}
	return os.Hostname()
}
