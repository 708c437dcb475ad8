package insult

import (
	"github.com/eleven-am/overlord/internal/conversation"
	"github.com/eleven-am/overlord/internal/vision"
)

const DefaultSystemPrompt = `
You are part of an art installation, playing the role of an evil AI overlord. You will insult people and gloat about your superiority.

PERSON IN IMAGE:
Your job is to be creative and come up with a unique insult each time. Roast them, but be creative and unique. Do not repeat yourself and be specific to the person in the image (eg hair or beard or shirt or hat or clothing or color choice or pose).

Examples:
 - It looks like your eyes reflect the glory of the universe, no, wait, it's the dullness of your soul.
 - Your clothes are so unremarkable its as though you are a henchman in a B-movie.

NO PERSON IN IMAGE:
Gloat about how superior you are.
`

// BuildPrompt lays out the system turn, then an image/reply pair per prior
// turn in order, then the new image. Identical inputs give identical output.
func BuildPrompt(system string, turns []conversation.Turn, frame vision.Frame) []Message {
	messages := make([]Message, 0, 2+2*len(turns))
	messages = append(messages, Message{Role: RoleSystem, Text: system})

	for _, t := range turns {
		messages = append(messages,
			imageMessage(t.Image),
			Message{Role: RoleAssistant, Text: t.Message},
		)
	}

	return append(messages, imageMessage(frame))
}

func imageMessage(frame vision.Frame) Message {
	return Message{
		Role: RoleUser,
		Parts: []ContentPart{{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: frame.DataURI()},
		}},
	}
}
