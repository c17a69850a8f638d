package catalog

import "strings"

// Operation is a billable generation request type exposed on the HTTP surface.
// Operations are finer grained than action types: image and image_edit both
// bill as ActionImage but resolve to different default providers.
type Operation string

const (
	OperationImage     Operation = "image"
	OperationImageEdit Operation = "image_edit"
	OperationVideo     Operation = "video"
	OperationVoiceover Operation = "voiceover"
	OperationMusic     Operation = "music"
	OperationScene     Operation = "scene"
	OperationCharacter Operation = "character"
	OperationPrompt    Operation = "prompt"
)

var operations = map[Operation]struct{}{
	OperationImage:     {},
	OperationImageEdit: {},
	OperationVideo:     {},
	OperationVoiceover: {},
	OperationMusic:     {},
	OperationScene:     {},
	OperationCharacter: {},
	OperationPrompt:    {},
}

// ParseOperation validates an operation path segment.
func ParseOperation(raw string) (Operation, bool) {
	op := Operation(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := operations[op]
	return op, ok
}

func (o Operation) String() string { return string(o) }

// ActionType maps the operation onto its ledger billing category.
func (o Operation) ActionType() ActionType {
	switch o {
	case OperationImage, OperationImageEdit:
		return ActionImage
	case OperationVideo:
		return ActionVideo
	case OperationVoiceover:
		return ActionVoiceover
	case OperationMusic:
		return ActionMusic
	case OperationScene:
		return ActionScene
	case OperationCharacter:
		return ActionCharacter
	default:
		return ActionPrompt
	}
}

// RequiresReferenceImages reports whether the operation structurally needs at
// least one reference image before a provider can be invoked at all.
func (o Operation) RequiresReferenceImages() bool {
	return o == OperationImageEdit
}

// defaultCreditCosts is the platform credit price per operation, used when no
// config override is present.
var defaultCreditCosts = map[Operation]int64{
	OperationImage:     25,
	OperationImageEdit: 25,
	OperationVideo:     100,
	OperationVoiceover: 15,
	OperationMusic:     40,
	OperationScene:     5,
	OperationCharacter: 5,
	OperationPrompt:    2,
}

// DefaultCreditCost returns the built-in credit price for the operation.
func DefaultCreditCost(op Operation) int64 {
	return defaultCreditCosts[op]
}
