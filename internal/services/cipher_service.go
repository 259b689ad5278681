package services

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"panciphers/internal/config"
	"panciphers/internal/transport"
)

const commitDescription = "SSH Ciphers Commit"

// CipherService drives the SSH cipher rollout against a single firewall:
// check what is already set per service, stage and commit what is missing,
// restart the affected SSH services, and finally reboot the device.
type CipherService struct {
	cfg    *config.Config
	client transport.Client
}

// NewCipherService creates a new cipher service for the given firewall client
func NewCipherService(cfg *config.Config, client transport.Client) *CipherService {
	return &CipherService{cfg: cfg, client: client}
}

// Apply runs the full sequence. Any failure aborts the remaining steps;
// a cipher already applied to one service is not rolled back when a later
// step fails, since the device exposes no transaction to undo it with.
func (s *CipherService) Apply() error {
	if err := s.client.Connect(); err != nil {
		return errors.Wrap(err, "connect")
	}
	defer s.client.Disconnect()

	sshServices := []string{transport.ServiceMgmt, transport.ServiceHA}

	missing := make(map[string][]string)
	for _, svc := range sshServices {
		current, err := s.client.GetCiphers(svc)
		if err != nil {
			return errors.Wrapf(err, "check %s ciphers", svc)
		}
		need := missingCiphers(s.cfg.CiphersFor(svc), current)
		if len(need) == 0 {
			log.WithField("service", svc).Info("Ciphers already set")
			continue
		}
		log.WithFields(log.Fields{
			"service": svc,
			"ciphers": need,
		}).Info("Ciphers need to be set")
		missing[svc] = need
	}

	if len(missing) == 0 {
		log.Info("All ciphers already set, nothing to do")
		return nil
	}

	if s.cfg.Sandbox {
		log.Warn("Dry run, no changes applied")
		return nil
	}

	var changed []string
	for _, svc := range sshServices {
		need, ok := missing[svc]
		if !ok {
			continue
		}
		if err := s.client.SetCiphers(svc, need); err != nil {
			return errors.Wrapf(err, "set %s ciphers", svc)
		}
		changed = append(changed, svc)
	}

	if err := s.client.Commit(commitDescription); err != nil {
		return errors.Wrap(err, "commit")
	}

	for _, svc := range changed {
		if err := s.client.RestartService(svc); err != nil {
			return errors.Wrapf(err, "restart %s service", svc)
		}
		// Restarting the SSH service drops the management API for a while
		if err := s.client.WaitForDevice(); err != nil {
			return errors.Wrapf(err, "wait for device after %s restart", svc)
		}
	}

	if err := s.client.RestartSystem(); err != nil {
		return errors.Wrap(err, "restart system")
	}

	return nil
}

// missingCiphers returns the desired ciphers not yet present on the device.
// Extra suites already set on the device are left alone.
func missingCiphers(want, current []string) []string {
	set := make(map[string]bool, len(current))
	for _, cipher := range current {
		set[cipher] = true
	}
	var need []string
	for _, cipher := range want {
		if !set[cipher] {
			need = append(need, cipher)
		}
	}
	return need
}
