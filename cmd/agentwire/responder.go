package main

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/agentwire/config"
	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/model"
	"github.com/hupe1980/agentwire/model/anthropic"
	"github.com/hupe1980/agentwire/model/openai"
	"github.com/hupe1980/agentwire/responder"
)

// buildResponder returns nil when replies are disabled.
func buildResponder(cfg *config.Config, logger logging.Logger) (*responder.Responder, error) {
	rc := cfg.Responder
	if !rc.Enabled {
		return nil, nil
	}

	m, err := buildModel(rc)
	if err != nil {
		return nil, err
	}

	return responder.New(m, func(o *responder.Options) {
		if rc.Instruction != "" {
			o.Instruction = responder.NewInstructionFromText(rc.Instruction)
		}
		o.AgentName = cfg.Agent.Name
		o.HistoryLimit = rc.HistoryLimit
		o.CallDelay = rc.CallDelay
		if rc.FallbackReply != "" {
			o.FallbackReply = rc.FallbackReply
		}
		o.Logger = logger
	}), nil
}

func buildModel(rc config.ResponderConfig) (model.Model, error) {
	switch rc.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if rc.Model != "" {
				o.Model = rc.Model
			}
			o.APIKey = rc.APIKey
			o.BaseURL = rc.BaseURL
			if rc.Temperature != nil {
				o.Temperature = *rc.Temperature
			}
			o.MaxCompletionTokens = rc.MaxTokens
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if rc.Model != "" {
				o.Model = anthropicsdk.Model(rc.Model)
			}
			o.APIKey = rc.APIKey
			o.BaseURL = rc.BaseURL
			if rc.Temperature != nil {
				o.Temperature = *rc.Temperature
			}
			if rc.MaxTokens > 0 {
				o.MaxTokens = rc.MaxTokens
			}
		}), nil
	case config.ProviderEcho:
		return model.EchoModel{}, nil
	default:
		return nil, fmt.Errorf("unsupported responder provider %q", rc.Provider)
	}
}
