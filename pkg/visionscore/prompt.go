package visionscore

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks the model for the annotation set the scorer consumes
const DefaultPrompt = `You are an image annotator for a photo quality service.

Return JSON only:
{
  "safeSearch": {"adult": "VERY_UNLIKELY", "violence": "VERY_UNLIKELY", "racy": "VERY_UNLIKELY", "medical": "VERY_UNLIKELY", "spoof": "VERY_UNLIKELY"},
  "labels": [{"description": "string", "score": 0.0}],
  "faces": [{"confidence": 0.0, "blurred": "VERY_UNLIKELY", "underExposed": "VERY_UNLIKELY", "joy": "VERY_UNLIKELY"}],
  "text": {"content": "string", "locale": "en"},
  "properties": {"dominantColors": [{"r": 0, "g": 0, "b": 0, "score": 0.0, "pixelFraction": 0.0}]}
}

HARD RULES
- Likelihoods are one of VERY_UNLIKELY, UNLIKELY, POSSIBLE, LIKELY, VERY_LIKELY.
- Scores, confidences and pixel fractions are in [0,1]. Colour channels are 0-255.
- Labels: up to 10, lowercase, most confident first, no duplicates.
- Faces: one entry per visible human face; an empty list if there are none.
- Text: only text actually visible in the image; null if there is none.
- Dominant colors: up to 5, most prominent first.
- Do not guess real identities.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`
