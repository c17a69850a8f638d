package catalog

import "strings"

// ActionType is the billing category attached to every ledger transaction.
// Generation operations map onto the generation subset; the remaining values
// cover grants and subscription bookkeeping.
type ActionType string

const (
	ActionImage               ActionType = "image"
	ActionVideo               ActionType = "video"
	ActionVoiceover           ActionType = "voiceover"
	ActionScene               ActionType = "scene"
	ActionCharacter           ActionType = "character"
	ActionPrompt              ActionType = "prompt"
	ActionMusic               ActionType = "music"
	ActionSubscription        ActionType = "subscription"
	ActionSubscriptionRenewal ActionType = "subscription_renewal"
	ActionBonus               ActionType = "bonus"
)

var actionTypes = map[ActionType]struct{}{
	ActionImage:               {},
	ActionVideo:               {},
	ActionVoiceover:           {},
	ActionScene:               {},
	ActionCharacter:           {},
	ActionPrompt:              {},
	ActionMusic:               {},
	ActionSubscription:        {},
	ActionSubscriptionRenewal: {},
	ActionBonus:               {},
}

// ParseActionType validates a transaction type string; ok is false for values
// outside the fixed vocabulary.
func ParseActionType(raw string) (ActionType, bool) {
	a := ActionType(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := actionTypes[a]
	return a, ok
}

func (a ActionType) String() string { return string(a) }
