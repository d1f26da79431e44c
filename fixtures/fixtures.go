package fixtures

import (
	_ "embed"
)

// ConfigTemplate holds the defaults every loaded configuration starts from.
//
//go:embed config/config.yaml.template
var ConfigTemplate []byte
