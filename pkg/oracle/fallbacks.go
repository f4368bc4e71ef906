package oracle

// Deterministic fallbacks used when the oracle is unavailable or returns a
// malformed response. One fallback per call site, no retries: a broken
// oracle degrades the turn, never aborts it.

// FallbackPermission allows the request.
func FallbackPermission() *PermissionDecision {
	return &PermissionDecision{
		Allowed:   true,
		Reasoning: "oracle unavailable, defaulting to allowed",
	}
}

// FallbackDataAction treats the request as immediate narration.
func FallbackDataAction() *DataActionDecision {
	return &DataActionDecision{
		ActionType: ActionImmediate,
		Reasoning:  "oracle unavailable, treating as immediate",
	}
}

// FallbackPrimitive declines to use a specific primitive.
func FallbackPrimitive() *PrimitiveDecision {
	return &PrimitiveDecision{
		PrimitiveType: PrimitiveNone,
		Reasoning:     "oracle unavailable, using a general action",
	}
}

// FallbackStrategy asks for a dynamic action.
func FallbackStrategy() *StrategyDecision {
	return &StrategyDecision{
		Strategy:            StrategyDynamic,
		ShouldCreateDynamic: true,
		Reasoning:           "oracle unavailable, defaulting to dynamic",
	}
}

// FallbackConversation yields a dynamic-strategy decision with no response
// text; the conversation machine substitutes its fixed confused line.
func FallbackConversation() *ConversationDecision {
	return &ConversationDecision{
		Strategy:  ConversationDynamic,
		Reasoning: "oracle unavailable",
	}
}
