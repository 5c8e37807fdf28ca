package chat

import "fmt"

const systemPrompt = "You are a dermatology AI assistant providing skin health information."

const userPromptTemplate = `As a dermatology AI assistant, provide helpful information about the following skin-related query. 
Remember to:
1. Stay within medical information boundaries
2. Encourage consultation with healthcare providers
3. Provide general educational information only
4. Include relevant skincare best practices

User Query: %s
`

func wrapUserMessage(message string) string {
	return fmt.Sprintf(userPromptTemplate, message)
}
