package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	log "github.com/sirupsen/logrus"

	"panciphers/internal/config"
	"panciphers/internal/services"
	"panciphers/internal/transport"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  --config string    YAML configuration file (default \"config.yaml\")\n")
	fmt.Fprintf(os.Stderr, "  --dry-run          Report the changes that would be applied, without applying them\n")
	fmt.Fprintf(os.Stderr, "  --verbose          Enable debug logs\n")
}

// findConfigPath resolves the configuration file, searching the usual
// locations when the default path is not overridden
func findConfigPath(yamlFile string) (string, error) {
	if yamlFile != "config.yaml" {
		return yamlFile, nil
	}

	possiblePaths := []string{
		filepath.Join(".", "config.yaml"),
	}

	if runtime.GOOS == "windows" {
		if appDataDir := os.Getenv("APPDATA"); appDataDir != "" {
			possiblePaths = append(possiblePaths, filepath.Join(appDataDir, "panciphers", "config.yaml"))
		}
		if programDataDir := os.Getenv("ProgramData"); programDataDir != "" {
			possiblePaths = append(possiblePaths, filepath.Join(programDataDir, "panciphers", "config.yaml"))
		}
	} else {
		if userConfigDir, err := os.UserConfigDir(); err == nil {
			possiblePaths = append(possiblePaths, filepath.Join(userConfigDir, "panciphers", "config.yaml"))
		}
		possiblePaths = append(possiblePaths, "/etc/panciphers/config.yaml")
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			log.WithField("path", path).Debug("Configuration file found")
			return path, nil
		}
	}

	if runtime.GOOS == "windows" {
		return "", errors.New("no config.yaml file found in ./, %APPDATA%\\panciphers\\, or %ProgramData%\\panciphers\\")
	}
	return "", errors.New("no config.yaml file found in ./, ~/.config/panciphers/, or /etc/panciphers/")
}

// failureClass names the failed step class so the operator can tell a
// credential problem from an unreachable or rejecting device
func failureClass(err error) string {
	switch {
	case errors.Is(err, transport.ErrAuthentication):
		return "Authentication failed"
	case errors.Is(err, transport.ErrInvalidCipher):
		return "Device rejected cipher configuration"
	case errors.Is(err, transport.ErrRestart):
		return "Restart request failed"
	case errors.Is(err, transport.ErrDeviceTimeout):
		return "Device did not come back up"
	case errors.Is(err, transport.ErrConnection):
		return "Connection failed"
	default:
		return "Cipher rollout failed"
	}
}

func main() {
	flag.Usage = printUsage
	yamlFile := flag.String("config", "config.yaml", "YAML configuration file")
	dryRun := flag.Bool("dry-run", false, "Report the changes that would be applied, without applying them")
	verbose := flag.Bool("verbose", false, "Enable debug logs")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	fmt.Printf("panciphers %s (built %s)\n", version, buildTime)

	configPath, err := findConfigPath(*yamlFile)
	if err != nil {
		log.Fatalf("Configuration load failed: %v", err)
	}

	cfg, err := config.Load(configPath, *dryRun)
	if err != nil {
		log.Fatalf("Configuration load failed: %v", err)
	}

	log.WithField("host", cfg.Firewall.Host).Info("Starting cipher rollout")

	client := transport.NewPanClient(cfg.Firewall)
	svc := services.NewCipherService(cfg, client)
	if err := svc.Apply(); err != nil {
		log.Fatalf("%s: %v", failureClass(err), err)
	}

	log.Info("Cipher rollout complete")
}
