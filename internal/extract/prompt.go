package extract

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

const SystemPrompt = `You are a legal document structure analyst. Read the document you are given and return its complete hierarchical structure as ONE JSON object with exactly this shape:

{
  "metadata": {
    "title": "official title of the document",
    "jurisdiction": "issuing jurisdiction, e.g. United States, European Union, California",
    "document_type": "statute | regulation | directive | ordinance | contract | guidance | other",
    "source": "citation or publisher"
  },
  "hierarchy": [
    {
      "id": "unique id encoding lineage, e.g. part1, part1:sec2, part1:sec2:a",
      "type": "part | chapter | article | section | subsection | paragraph | clause | definition",
      "number": "the number or letter as printed, e.g. II, 3, (a)",
      "title": "heading text, or empty string",
      "text": "the VERBATIM text of this unit, excluding the text of its children",
      "level": 1,
      "references": [
        {"target": "id of the referenced node, or \"external\"", "text": "the reference as written", "type": "internal | external"}
      ],
      "children": []
    }
  ]
}

Rules:
- Emit "metadata" first, then "hierarchy".
- Every unit must carry all eight fields. Use "" and [] rather than omitting fields.
- "level" is 1 for top-level units and increases by one for each level of nesting.
- Ids must be unique across the whole document and stable: a child's id starts with its parent's id.
- Copy text verbatim. Do not summarize, paraphrase, or translate.
- A reference to another unit of this document is "internal" with that unit's id as target. References to other laws, cases, or documents are "external" with target "external".
- Respond with ONLY the JSON object. No markdown fences, no commentary.`

// BuildDocumentPrompt is the user message for a document sent in one request.
func BuildDocumentPrompt(title, text string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(fmt.Sprintf("Document: %q\n", title))
	}
	sb.WriteString("---\n")
	sb.WriteString(text)
	return sb.String()
}

// BuildChunkPrompt is the user message for one chunk of a long document. The
// chunk position tells the model to keep ids consistent with the other parts
// and to avoid re-emitting units it can only see partially.
func BuildChunkPrompt(title string, chunk doctree.Chunk) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(fmt.Sprintf("Document: %q\n", title))
	}
	sb.WriteString(fmt.Sprintf("This is part %d of %d of a longer document (characters %d-%d).\n",
		chunk.Index+1, chunk.TotalChunks, chunk.StartChar, chunk.EndChar))
	sb.WriteString("Structure only the text below. Use ids that would be valid for the whole document, so that a unit continuing from or into a neighbouring part keeps the same id. ")
	if chunk.Index > 0 {
		sb.WriteString("The first lines overlap with the previous part; do not repeat units that end inside the overlap. ")
	}
	sb.WriteString("Provide metadata as best you can from this part.\n")
	sb.WriteString("---\n")
	sb.WriteString(chunk.Content)
	return sb.String()
}
