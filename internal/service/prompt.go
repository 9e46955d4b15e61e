package service

import (
	"fmt"
	"strings"

	"github.com/docqahq/docqa/internal/ai"
	"github.com/docqahq/docqa/internal/model"
)

// contextOnlySystemPrompt forbids the completion service from answering
// outside the supplied snippets.
const contextOnlySystemPrompt = "You are an AI assistant that answers questions using only the provided context. " +
	"Use only the information inside the numbered context blocks to answer. " +
	"If the context does not contain the information needed, say so clearly instead of guessing. " +
	"Be helpful, accurate, and concise."

const ungroundedSystemPrompt = "You are a helpful AI assistant. The knowledge base had no matching content for this question; " +
	"answer from general knowledge and say explicitly that the answer is not grounded in the user's documents."

const (
	generationTemperature = 0.3
	generationMaxTokens   = 800
)

// buildRagRequest assembles the single generation call: context blocks,
// then up to historyWindow prior turns, then the question.
func buildRagRequest(query string, hits []model.SearchHit, history []model.ChatMessage, historyWindow int) ai.GenerateRequest {
	var sb strings.Builder
	sb.WriteString("Context for answering the question:\n")
	for i, hit := range hits {
		sb.WriteString(fmt.Sprintf("Context %d: %s\n", i+1, hit.Point.Text()))
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)

	msgs := historyMessages(history, historyWindow)
	msgs = append(msgs, ai.Message{Role: "user", Content: sb.String()})
	return ai.GenerateRequest{
		System:      contextOnlySystemPrompt,
		Messages:    msgs,
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	}
}

func buildUngroundedRequest(query string, history []model.ChatMessage, historyWindow int) ai.GenerateRequest {
	msgs := historyMessages(history, historyWindow)
	msgs = append(msgs, ai.Message{Role: "user", Content: query})
	return ai.GenerateRequest{
		System:      ungroundedSystemPrompt,
		Messages:    msgs,
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	}
}

// historyMessages keeps the trailing historyWindow turns; older turns
// are dropped to bound prompt size.
func historyMessages(history []model.ChatMessage, historyWindow int) []ai.Message {
	if historyWindow <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	msgs := make([]ai.Message, 0, len(history)+1)
	for _, turn := range history {
		role := turn.Role
		if role != "assistant" {
			role = "user"
		}
		msgs = append(msgs, ai.Message{Role: role, Content: turn.Content})
	}
	return msgs
}
