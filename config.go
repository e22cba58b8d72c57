package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/semihalev/log"
)

// BuildVersion is the build version of tres, incremented every release.
var BuildVersion = "0.1.0"

// ConfigVersion is the version of the config schema; bumped whenever
// the config shape changes so tres can warn about stale config files.
var ConfigVersion = "0.1.0"

type config struct {
	Version     string
	LogLevel    string
	Bind        string
	HintsFile   string
	AccessList  []string
	OutboundIP4 string
	OutboundIP6 string
	MaxDepth    int
	MaxQueries  int
	RateLimit   int
}

var defaultConfig = `# version this config was generated from
version = "%s"

# what kind of information should be logged [crit,error,warn,info,debug]
loglevel = "info"

# address to bind to for the DNS server
bind = ":53"

# root hints file
hintsfile = "root.hints"

# which clients are allowed to make queries
accesslist = [
"0.0.0.0/0",
"::0/0"
]

# source address used for outbound IPv4 queries, blank for the wildcard
outboundip4 = ""

# source address used for outbound IPv6 queries, blank for the wildcard
outboundip6 = ""

# maximum recursion depth for delegation/CNAME chasing
maxdepth = 30

# per-resolution query ceiling
maxqueries = 100

# query based ratelimit per second per client, 0 disables
ratelimit = 0
`

// Config is the global configuration, populated by LoadConfig.
var Config config

// LoadConfig loads the config file at path, generating a default one
// if it does not yet exist.
func LoadConfig(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := generateConfig(path); err != nil {
			return err
		}
	}

	if _, err := toml.DecodeFile(path, &Config); err != nil {
		return fmt.Errorf("could not load config: %s", err)
	}

	if Config.Version != ConfigVersion {
		log.Warn("Config file is out of date!")
	}

	return nil
}

func generateConfig(path string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not generate config: %s", err)
	}
	defer output.Close()

	r := strings.NewReader(fmt.Sprintf(defaultConfig, ConfigVersion))
	if _, err := io.Copy(output, r); err != nil {
		return fmt.Errorf("could not copy default config: %s", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		log.Info("Default config file generated", "config", abs)
	}

	return nil
}
