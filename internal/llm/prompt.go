package llm

const (
	systemPreamble = "You are a helpful AI companion assistant. "
	systemClosing  = "Respond naturally to the user's message."
)

// BuildSystemPrompt returns the companion system instruction. A non-empty
// relationship context is inserted verbatim before the closing sentence.
func BuildSystemPrompt(relationshipContext string) string {
	if relationshipContext == "" {
		return systemPreamble + "\n" + systemClosing
	}
	return systemPreamble + "\n" + relationshipContext + "\n\n" + systemClosing
}
