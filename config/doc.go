// Package config loads agentwire YAML configuration files.
//
// Values of the form ${VAR_NAME} are expanded from the environment before
// parsing, durations are written as Go duration strings ("5s", "500ms"), and
// LoadDotEnv can seed the environment from .env files first:
//
//	agent:
//	  kind: polling
//	  name: sentiment-bot
//	polling:
//	  api_url: https://store.example.com/api
//	  api_key: ${AGENT_API_KEY}
//	  interval: 5s
//	responder:
//	  enabled: true
//	  provider: openai
//	  model: gpt-3.5-turbo
package config
