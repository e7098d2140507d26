package factory

import (
	"fmt"

	"curiow-be/pkg/llm"
	"curiow-be/pkg/llm/huggingface"
	"curiow-be/pkg/llm/ollama"
)

const defaultOllamaURL = "http://localhost:11434"

// NewLLMProvider builds the backend named by providerType. baseURL is the
// Ollama host or the Hugging Face router URL; apiKey is only used by the latter.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama", "":
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "huggingface":
		if apiKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API key")
		}
		return huggingface.NewHuggingFaceProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
