package executor

import (
	"bytes"
	"encoding/json"

	"github.com/ncobase/runpod/runpod/catalog"
)

const genericTemplate = `{"prompt":"Hello, world!","max_tokens":100,"temperature":0.7}`

// templates are keyed by catalog rule name.
var templates = map[string]string{
	catalog.RuleText: `{
		"messages": [
			{"role": "system", "content": "You are a helpful assistant."},
			{"role": "user", "content": "What is Runpod?"}
		],
		"sampling_params": {"max_tokens": 512, "temperature": 0.7, "seed": -1, "top_k": -1, "top_p": 1}
	}`,
	catalog.RuleImage: `{
		"prompt": "A serene mountain landscape at sunset",
		"negative_prompt": "blurry, low quality",
		"width": 1024,
		"height": 1024,
		"num_inference_steps": 20,
		"guidance": 7.5,
		"seed": 42,
		"image_format": "png"
	}`,
	catalog.RuleImageEdit: `{
		"images": ["https://example.com/source-image.jpg"],
		"prompt": "Make this image more vibrant and colorful",
		"negative_prompt": "blurry, low quality",
		"num_inference_steps": 20,
		"guidance": 7.5,
		"seed": 42,
		"image_format": "png"
	}`,
	catalog.RuleVideo: `{
		"prompt": "A serene morning in an ancient forest, golden sunlight filtering through tall pine trees",
		"num_inference_steps": 30,
		"guidance": 5,
		"negative_prompt": "",
		"size": "1280*720",
		"duration": 5,
		"flow_shift": 5,
		"seed": -1,
		"enable_prompt_optimization": false,
		"enable_safety_checker": true
	}`,
	catalog.RuleAudio: `{
		"audio": "https://example.com/audio.mp3",
		"language": "en",
		"response_format": "json"
	}`,
}

// DefaultInput returns the starter payload for a model. A matching rule
// decides the shape; unmatched models use the template of the operation's
// category, or the generic prompt for text and status.
func DefaultInput(modelID string, op catalog.Operation) json.RawMessage {
	if rule, ok := catalog.Match(modelID); ok {
		return compact(templates[rule.Name])
	}
	if c, ok := op.Category(); ok && c != catalog.CategoryText {
		return compact(templates[string(c)])
	}
	return compact(genericTemplate)
}

func compact(s string) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		panic("executor: invalid template: " + err.Error())
	}
	return buf.Bytes()
}
