package aisvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/suggestion"
)

var (
	offlineActivities = map[string][]string{
		core.ClassNursery: {
			"Sensory tray: explore sand, rice and water with scoops and cups",
			"Rhyme time: action songs with clapping and stamping",
			"Colour hunt: find and name objects of one colour in the room",
			"Play dough shapes to build finger strength",
			"Picture story: children point and name what they see",
		},
		core.ClassLKG: {
			"Letter walk: trace big floor letters with a toy car",
			"Counting garden: sort and count seeds or pebbles up to 10",
			"Bead threading patterns (two colours, then three)",
			"Story retelling with puppets in small groups",
			"Shape collage with cut paper circles, squares and triangles",
		},
		core.ClassUKG: {
			"Word building with letter cards (three letter words)",
			"Number line hops for addition within 20",
			"Show and tell: speak three sentences about a favourite object",
			"Cut, paste and label the parts of a plant",
			"Team relay with simple instructions to follow in order",
		},
	}
	offlineGoals = map[string][]string{
		core.ClassNursery: {
			"Names 5 colours when shown objects",
			"Follows a one step instruction without help",
			"Holds a crayon with a palm grasp and makes marks",
			"Takes turns in a group game with a reminder",
			"Joins in 3 familiar rhymes",
		},
		core.ClassLKG: {
			"Recognises and sounds out 15 letters",
			"Counts objects reliably up to 10",
			"Writes own first name with support",
			"Shares materials during group work",
			"Retells a short story in the right order",
		},
		core.ClassUKG: {
			"Reads 20 common sight words",
			"Adds and subtracts within 10 using objects",
			"Writes a simple sentence with spaces between words",
			"Explains a feeling and its cause in words",
			"Completes a 3 step task independently",
		},
	}
)

type offlineSuggester struct{}

var _ suggestion.Suggester = offlineSuggester{}

// NewOfflineSuggester returns a Suggester answering from built-in lists, used when no AI provider is configured.
func NewOfflineSuggester() suggestion.Suggester {
	return offlineSuggester{}
}

func (offlineSuggester) Suggest(_ context.Context, prompt suggestion.Prompt) (string, error) {
	class := prompt.Class
	if !core.IsValidClass(class) {
		class = core.ClassLKG
	}

	var items []string
	switch prompt.Kind {
	case suggestion.KindActivities:
		items = offlineActivities[class]
	case suggestion.KindGoals:
		items = offlineGoals[class]
	case suggestion.KindRemarks:
		return "Your child is settling in well and is growing in confidence every week. " +
			"They enjoy group activities and are beginning to express their ideas clearly. " +
			"We will keep encouraging practice at home and in class.", nil
	default:
		return "", fmt.Errorf("unknown suggestion kind %q", prompt.Kind)
	}

	var b strings.Builder
	if prompt.Topic != "" {
		fmt.Fprintf(&b, "Theme: %s\n", prompt.Topic)
	}
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	return b.String(), nil
}
