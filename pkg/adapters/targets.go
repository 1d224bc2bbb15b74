package adapters

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rotisserie/eris"

	"github.com/ngld/assetpipe/pkg/config"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

func engines(targets []config.Target) []api.Engine {
	result := make([]api.Engine, 0, len(targets))
	for _, target := range targets {
		name, ok := engineNames[target.Engine]
		if !ok {
			continue
		}
		result = append(result, api.Engine{Name: name, Version: target.Version})
	}
	return result
}

func messagesToError(kind string, messages []api.Message) error {
	if len(messages) == 0 {
		return nil
	}

	formatted := api.FormatMessages(messages, api.FormatMessagesOptions{
		Kind: api.ErrorMessage,
	})
	return eris.Errorf("%s:\n%s", kind, strings.TrimSpace(strings.Join(formatted, "")))
}
