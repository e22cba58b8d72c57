package main

import (
	"os"

	"github.com/semihalev/log"
)

func main() {
	if err := LoadConfig("tres.toml"); err != nil {
		log.Crit("Config loading failed", "error", err.Error())
	}

	lvl, err := log.LvlFromString(Config.LogLevel)
	if err != nil {
		lvl = log.LvlInfo
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StdoutHandler))

	log.Info("Starting tres...", "version", BuildVersion)

	if err := newRootCmd().Execute(); err != nil {
		log.Error("tres failed", "error", err.Error())
		os.Exit(1)
	}
}
