package classifier

import (
	"fmt"

	"github.com/umputun/newsclass/pkg/config"
)

// NewModel makes the model backend selected by classifier config
func NewModel(cfg config.ClassifierConfig) (Model, error) {
	switch cfg.Type {
	case "http", "":
		m, err := NewHTTPModel(HTTPModelParams{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Labels:   cfg.Labels,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case "llm":
		return NewLLMModel(LLMModelParams{
			Endpoint:     cfg.Endpoint,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			Temperature:  cfg.Temperature,
			Labels:       cfg.Labels,
			SystemPrompt: cfg.SystemPrompt,
		}), nil
	default:
		return nil, fmt.Errorf("unknown classifier type %q", cfg.Type)
	}
}
