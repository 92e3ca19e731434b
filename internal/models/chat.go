package models

// ChatMessage is one turn of the conversation kept by the main agent.
type ChatMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// AgentReply is what the router returns for a user message: the text to
// display plus where the message was routed.
type AgentReply struct {
	Response      string
	Intent        string
	TargetAgent   string
	NeedsFollowup bool
}
