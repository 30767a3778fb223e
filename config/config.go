package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store is the process configuration for one directory store.
type Store struct {
	// DataDir is where the key-value engine keeps its files.
	DataDir string `yaml:"dataDir"`

	Cache      Cache      `yaml:"cache"`
	Credential Credential `yaml:"credential"`
}

type Cache struct {
	// ObjectTTL bounds how long immutable object bytes stay in the
	// read-through cache.
	ObjectTTL time.Duration `yaml:"objectTTL"`
}

type Credential struct {
	// Scrypt cost parameters for newly issued credentials. Existing
	// credentials keep the parameters they were derived with.
	ScryptN      int `yaml:"scryptN"`
	ScryptR      int `yaml:"scryptR"`
	ScryptP      int `yaml:"scryptP"`
	ScryptKeyLen int `yaml:"scryptKeyLen"`

	// VerifyRate/VerifyBurst throttle verification attempts per path.
	// A zero rate disables throttling.
	VerifyRate  float64 `yaml:"verifyRate"`
	VerifyBurst int     `yaml:"verifyBurst"`
}

var (
	ErrConfigFileUnreadable     = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable = errors.New("config file is unmarshallable")
	ErrDataDirMissing           = errors.New("dataDir is missing in config")
	ErrScryptParamsIncomplete   = errors.New("credential scrypt parameters incomplete: n, r, p, and keyLen must all be set or all be omitted")
	ErrVerifyBurstMissing       = errors.New("credential.verifyBurst must be set when verifyRate is set")
)

func LoadConfig(configFile string) (*Store, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, ErrConfigFileUnreadable
	}

	var cfg Store
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ErrConfigFileUnmarshallable
	}

	if cfg.DataDir == "" {
		return nil, ErrDataDirMissing
	}

	scryptSet := cfg.Credential.ScryptN != 0 || cfg.Credential.ScryptR != 0 ||
		cfg.Credential.ScryptP != 0 || cfg.Credential.ScryptKeyLen != 0
	scryptComplete := cfg.Credential.ScryptN != 0 && cfg.Credential.ScryptR != 0 &&
		cfg.Credential.ScryptP != 0 && cfg.Credential.ScryptKeyLen != 0
	if scryptSet && !scryptComplete {
		return nil, ErrScryptParamsIncomplete
	}

	if cfg.Credential.VerifyRate > 0 && cfg.Credential.VerifyBurst <= 0 {
		return nil, ErrVerifyBurstMissing
	}

	return &cfg, nil
}
