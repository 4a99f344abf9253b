// Package model defines the provider-agnostic abstraction used by the
// responder to turn a conversation into a reply.
//
// Core goals:
//   - Keep request/response shapes minimal: instructions plus role-tagged turns in, text out
//   - Report token usage so callers can log cost per call
//   - Facilitate lightweight testing and offline runs (MockModel, EchoModel)
//
// Providers (openai, anthropic) live in sub-packages and implement Model so
// the responder stays decoupled from vendor SDKs.
package model
