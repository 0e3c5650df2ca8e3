package retrieval

import "fmt"

const systemInstructions = "You are a precise, citation-focused assistant." +
	" Answer ONLY from the provided context." +
	" If the answer is not in context, say you don't know." +
	" Provide short, clear answers first, then a concise explanation." +
	" Cite sources by (Doc, Page) when possible."

func buildPrompt(question, context string) string {
	return fmt.Sprintf(
		"%s\n\nUsing ONLY the context below, answer succinctly.\n\n# Question\n%s\n\n# Context\n%s",
		systemInstructions, question, context,
	)
}
