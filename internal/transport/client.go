package transport

import "errors"

// SSH services whose cipher preferences the firewall exposes
const (
	ServiceMgmt = "mgmt"
	ServiceHA   = "ha"
)

// ErrAuthentication is returned when the firewall rejects the credentials.
var ErrAuthentication = errors.New("authentication failed")

// ErrConnection is returned when the firewall is unreachable or a call times out.
var ErrConnection = errors.New("device unreachable")

// ErrInvalidCipher is returned when the firewall rejects a requested cipher suite.
var ErrInvalidCipher = errors.New("cipher suite rejected by device")

// ErrRestart is returned when the firewall rejects a service or system restart request.
var ErrRestart = errors.New("restart request rejected by device")

// ErrDeviceTimeout is returned when the firewall does not answer again within
// the configured wait deadline after a service restart.
var ErrDeviceTimeout = errors.New("timed out waiting for device")

// Client abstracts a firewall management API session
type Client interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	GetCiphers(service string) ([]string, error)
	SetCiphers(service string, ciphers []string) error
	Commit(description string) error
	RestartService(service string) error
	RestartSystem() error
	WaitForDevice() error
}
