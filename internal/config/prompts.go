package config

import "fmt"

const entitySchema = `Return a JSON object with key "entities", a list of objects with:
- "type": one of PERSON, LOCATION, ORG, TIME, OTHER
- "value": the entity text as it appears
- "confidence": float between 0 and 1
- "unit": identifier of the %s the entity appears in
- "start", "end": %s (optional)
Example: {"entities": [{"type": "PERSON", "value": "John Smith", "confidence": 0.9, "unit": "%s-1"}]}
Output only the JSON object.`

func DefaultPrompts() Prompts {
	return Prompts{
		Text: `You are a forensic analyst. Extract every person, location, organisation, time expression and other notable item from the document below.
` + sprintSchema("sentence", "character offsets", "sentence") + `

<DOCUMENT>
%s
</DOCUMENT>`,
		Voice: `You are a forensic analyst. The following is an automatic transcript of a voice recording, one utterance per line prefixed with its index.
Extract every person, location, organisation, time expression and other notable item.
` + sprintSchema("utterance", "seconds from the start of the recording", "utterance") + `

<TRANSCRIPT>
%s
</TRANSCRIPT>`,
		Image: `You are a forensic analyst. Read all visible text in this image (documents, screens, signs, labels) and extract every person, location, organisation, time expression and other notable item.
` + sprintSchema("image region", "unused", "region") + `
Add "bbox": [x, y, width, height] in pixels for each entity when you can locate it.`,
		Relations: `Two entities were mentioned together in the same %s.
Entity A: %s "%s"
Entity B: %s "%s"
Return a JSON object {"relation_type": "<UPPER_SNAKE_CASE relation from A to B>"}.
Use "NONE" if they are not related.`,
		Communities: `The following entities form a connected group in a forensic investigation graph.
%s
Write a short investigative brief describing the group. Return {"summary": "..."}.`,
		CommunityName: `Give a short name (max 5 words) for this group: %s
Return {"name": "..."}.`,
	}
}

func sprintSchema(unit, offsets, prefix string) string {
	return fmt.Sprintf(entitySchema, unit, offsets, prefix)
}
