package transport

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/PaloAltoNetworks/pango"
	"github.com/PaloAltoNetworks/pango/commit"
	panoserr "github.com/PaloAltoNetworks/pango/errors"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"panciphers/internal/config"
)

const commitJobInterval = 2 * time.Second

// PanClient manages a PAN-OS XML API session with a firewall
type PanClient struct {
	cfg config.FirewallConfig
	fw  *pango.Firewall
}

// NewPanClient creates a new firewall API client with the given configuration
func NewPanClient(cfg config.FirewallConfig) *PanClient {
	return &PanClient{cfg: cfg}
}

func (pc *PanClient) newFirewall() *pango.Firewall {
	return &pango.Firewall{Client: pango.Client{
		Hostname: pc.cfg.Host,
		Username: pc.cfg.Username,
		Password: pc.cfg.Password,
		ApiKey:   pc.cfg.APIKey,
		Timeout:  pc.cfg.Timeout,
		Logging:  pango.LogQuiet,
	}}
}

func (pc *PanClient) Connect() error {
	if pc.IsConnected() {
		return nil
	}
	fw := pc.newFirewall()
	if err := fw.Initialize(); err != nil {
		if _, ok := err.(panoserr.Panos); ok {
			return errors.Wrapf(ErrAuthentication, "firewall %s: %v", pc.cfg.Host, err)
		}
		return errors.Wrapf(ErrConnection, "firewall %s: %v", pc.cfg.Host, err)
	}
	pc.fw = fw
	log.WithField("host", pc.cfg.Host).Debug("Connected to firewall API")
	return nil
}

func (pc *PanClient) Disconnect() {
	// The XML API is stateless; dropping the handle forgets the session key.
	pc.fw = nil
}

func (pc *PanClient) IsConnected() bool {
	return pc.fw != nil
}

func cipherXpath(service string) string {
	return fmt.Sprintf("/config/devices/entry[@name='localhost.localdomain']"+
		"/deviceconfig/system/ssh/ciphers/%s", service)
}

// wrapGetErr classifies a config-get failure. A PAN-OS error here is a
// read refusal (permissions, bad xpath), not a rejected cipher; nothing has
// been proposed to the device yet.
func wrapGetErr(service string, err error) error {
	if _, ok := err.(panoserr.Panos); ok {
		return errors.Wrapf(err, "get %s ciphers", service)
	}
	return errors.Wrapf(ErrConnection, "get %s ciphers: %v", service, err)
}

// GetCiphers returns the cipher suites currently configured for the service
func (pc *PanClient) GetCiphers(service string) ([]string, error) {
	data, err := pc.fw.Get(cipherXpath(service), nil, nil)
	if err != nil {
		return nil, wrapGetErr(service, err)
	}
	ciphers, err := parseCiphers(data, service)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s ciphers", service)
	}
	return ciphers, nil
}

// SetCiphers stages the given cipher suites on the service, one config-set
// per suite, matching the device's entry-per-cipher schema
func (pc *PanClient) SetCiphers(service string, ciphers []string) error {
	xpath := cipherXpath(service)
	for _, cipher := range ciphers {
		data, err := pc.fw.Set(xpath, fmt.Sprintf("<%s/>", cipher), nil, nil)
		if err != nil {
			if _, ok := err.(panoserr.Panos); ok {
				return errors.Wrapf(ErrInvalidCipher, "set %s cipher %s: %v", service, cipher, err)
			}
			return errors.Wrapf(ErrConnection, "set %s cipher %s: %v", service, cipher, err)
		}
		log.WithFields(log.Fields{
			"service": service,
			"cipher":  cipher,
			"status":  parseStatus(data),
		}).Info("Cipher staged")
	}
	return nil
}

// Commit commits the candidate configuration and waits for the job to finish
func (pc *PanClient) Commit(description string) error {
	cmd := commit.FirewallCommit{Description: description}
	job, _, err := pc.fw.Commit(cmd.Element(), "", nil)
	if err != nil {
		if _, ok := err.(panoserr.Panos); ok {
			return errors.Wrapf(ErrRestart, "commit: %v", err)
		}
		return errors.Wrapf(ErrConnection, "commit: %v", err)
	}
	if job != 0 {
		if err := pc.fw.WaitForJob(job, commitJobInterval, nil, nil); err != nil {
			return errors.Wrapf(ErrRestart, "commit job %d: %v", job, err)
		}
	}
	log.WithField("job", job).Info("Commit finished")
	return nil
}

// RestartService restarts the SSH service so the committed ciphers take effect
func (pc *PanClient) RestartService(service string) error {
	cmd := fmt.Sprintf("<set><ssh><service-restart><%s></%s></service-restart></ssh></set>",
		service, service)
	data, err := pc.fw.Op(cmd, "", nil, nil)
	if err != nil {
		if _, ok := err.(panoserr.Panos); ok {
			return errors.Wrapf(ErrRestart, "restart %s service: %v", service, err)
		}
		return errors.Wrapf(ErrConnection, "restart %s service: %v", service, err)
	}
	log.WithFields(log.Fields{
		"service": service,
		"message": parseMember(data),
	}).Info("Service restart requested")
	return nil
}

// RestartSystem reboots the firewall. The device tears the connection down
// while answering, so a transport error counts as an accepted request.
func (pc *PanClient) RestartSystem() error {
	cmd := "<request><restart><system></system></restart></request>"
	if _, err := pc.fw.Op(cmd, "", nil, nil); err != nil {
		if _, ok := err.(panoserr.Panos); ok {
			return errors.Wrapf(ErrRestart, "restart system: %v", err)
		}
		log.WithField("host", pc.cfg.Host).Debug("Connection dropped during restart request")
	}
	pc.fw = nil
	log.WithField("host", pc.cfg.Host).Info("System restart requested")
	return nil
}

// WaitForDevice polls until the management API answers again after a service
// restart, giving up once the configured wait deadline passes
func (pc *PanClient) WaitForDevice() error {
	interval := time.Duration(pc.cfg.WaitInterval) * time.Second
	deadline := time.Now().Add(time.Duration(pc.cfg.WaitTimeout) * time.Second)
	pc.fw = nil
	for {
		time.Sleep(interval)
		fw := pc.newFirewall()
		if err := fw.Initialize(); err == nil {
			pc.fw = fw
			log.WithField("host", pc.cfg.Host).Info("Device is back up")
			return nil
		} else if _, ok := err.(panoserr.Panos); ok {
			// The API answered; the device is up even if the key request
			// itself was refused.
			return errors.Wrapf(ErrAuthentication, "firewall %s: %v", pc.cfg.Host, err)
		} else {
			log.WithField("host", pc.cfg.Host).Debug("Device still down, continuing to check")
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(ErrDeviceTimeout, "firewall %s after %ds", pc.cfg.Host, pc.cfg.WaitTimeout)
		}
	}
}

type xmlNode struct {
	XMLName  xml.Name
	Children []xmlNode `xml:",any"`
}

type apiResponse struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:"status,attr"`
	Result  struct {
		Member   string    `xml:"member"`
		Children []xmlNode `xml:",any"`
	} `xml:"result"`
}

// parseCiphers extracts the cipher entry names nested under the service node
// of a config-get response
func parseCiphers(data []byte, service string) ([]string, error) {
	var resp apiResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	var ciphers []string
	for _, node := range resp.Result.Children {
		if node.XMLName.Local != service {
			continue
		}
		for _, child := range node.Children {
			ciphers = append(ciphers, child.XMLName.Local)
		}
	}
	return ciphers, nil
}

func parseStatus(data []byte) string {
	var resp apiResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return ""
	}
	return resp.Status
}

func parseMember(data []byte) string {
	var resp apiResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return ""
	}
	return resp.Result.Member
}
