package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ChatModelFactory builds a chat model for one model or endpoint id.
type ChatModelFactory func(ctx context.Context, modelID string) (model.ChatModel, error)

// ArkBackend runs prompts through an eino chain backed by a Volcengine Ark chat model.
// One chain is compiled per model id and reused.
type ArkBackend struct {
	newModel ChatModelFactory

	mu     sync.Mutex
	chains map[string]compose.Runnable[map[string]any, *schema.Message]
}

// NewArkBackend returns a backend that builds chat models with factory.
func NewArkBackend(factory ChatModelFactory) *ArkBackend {
	return &ArkBackend{
		newModel: factory,
		chains:   make(map[string]compose.Runnable[map[string]any, *schema.Message]),
	}
}

func (b *ArkBackend) Name() string { return "ark" }

// Generate sends prompt as a single user message.
func (b *ArkBackend) Generate(ctx context.Context, modelID, text string) (string, error) {
	chain, err := b.chain(ctx, modelID)
	if err != nil {
		return "", err
	}

	resp, err := chain.Invoke(ctx, map[string]any{"prompt": text})
	if err != nil {
		return "", fmt.Errorf("failed to run ark chain for %s: %w", modelID, err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}

func (b *ArkBackend) chain(ctx context.Context, modelID string) (compose.Runnable[map[string]any, *schema.Message], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runnable, ok := b.chains[modelID]; ok {
		return runnable, nil
	}

	chatModel, err := b.newModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model %s: %w", modelID, err)
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	b.chains[modelID] = runnable
	return runnable, nil
}
