package domain

// Keys of the prompt context passed to workers.
const (
	InputSystem          = "system"
	InputPrompt          = "prompt"
	InputQuestion        = "question"
	InputContext         = "context"
	InputKnowledgeAnswer = "rag_result"
	InputWebAnswer       = "web_result"
	InputPaper           = "paper"
	InputDocument        = "document"
)
