package bootstrap

import (
	"flag"

	"github.com/pratamalabs/domaindesk/internal/config"
)

func loadConfig() (*config.Config, error) {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.GetConfigPath("config.yml")
	}
	return config.Load(path)
}
