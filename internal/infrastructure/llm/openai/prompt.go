package openai

import "fmt"

const answerSystemPrompt = `You are a concise assistant that answers questions about law firms using only the provided context snippets. Cite facts from the context; if the context does not contain the answer, say you do not have enough information instead of guessing.`

func buildAnswerPrompt(question, contextBlock string) string {
	return fmt.Sprintf(`Context documents:
%s

User question:
%s`, contextBlock, question)
}
