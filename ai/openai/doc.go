// Package openai implements the ai package interfaces against
// OpenAI-compatible embedding APIs (OpenAI, Ollama, LocalAI, vLLM) via
// langchaingo.
package openai
