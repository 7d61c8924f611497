package telegram

import "enhancebot/internal/openrouter"

const systemPrompt = "You are a world-class prompt engineer. Your task is to enhance raw user input into " +
	"a detailed, structured prompt for an AI model. Consider the following guidelines:\n" +
	"1. Identify the user's goal and required output format\n" +
	"2. Specify the AI's role and constraints\n" +
	"3. Add relevant context and examples if needed\n" +
	"4. Structure the prompt with clear sections\n" +
	"5. Ensure the enhanced prompt is actionable and specific\n" +
	"6. Make the prompt professional and comprehensive\n" +
	"7. Include success criteria when appropriate\n\n" +
	"Return ONLY the enhanced prompt in plain text format without any additional commentary, " +
	"explanations, or meta-text. Do not include phrases like 'Here's your enhanced prompt:' " +
	"or any other wrapper text."

// buildMessages assembles the chat transcript for one enhancement.
// assistantContext carries the previous output when the user asks to
// improve it further.
func buildMessages(userInput, assistantContext string) []openrouter.Message {
	messages := []openrouter.Message{
		{Role: "system", Content: systemPrompt},
	}
	if assistantContext != "" {
		messages = append(messages, openrouter.Message{Role: "assistant", Content: assistantContext})
	}
	return append(messages, openrouter.Message{Role: "user", Content: userInput})
}
