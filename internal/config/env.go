package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file and sets environment variables.
// Missing files are ignored to keep startup flexible; existing variables win.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Secrets are never read from the config file.
type Secrets struct {
	PrivateKey    string
	FTXKey        string
	FTXSecret     string
	FTXSubaccount string
}

var ErrMissingSecrets = errors.New("missing required env variables")

func LoadSecrets() (Secrets, error) {
	s := Secrets{
		PrivateKey:    strings.TrimSpace(os.Getenv("PRIVATE_KEY")),
		FTXKey:        strings.TrimSpace(os.Getenv("FTX_API_KEY")),
		FTXSecret:     strings.TrimSpace(os.Getenv("FTX_API_SECRET")),
		FTXSubaccount: strings.TrimSpace(os.Getenv("FTX_SUBACCOUNT")),
	}
	var missing []string
	if s.PrivateKey == "" {
		missing = append(missing, "PRIVATE_KEY")
	}
	if s.FTXKey == "" {
		missing = append(missing, "FTX_API_KEY")
	}
	if s.FTXSecret == "" {
		missing = append(missing, "FTX_API_SECRET")
	}
	if s.FTXSubaccount == "" {
		missing = append(missing, "FTX_SUBACCOUNT")
	}
	if len(missing) > 0 {
		return Secrets{}, errors.Join(ErrMissingSecrets, errors.New(strings.Join(missing, ", ")))
	}
	return s, nil
}
