package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var displayNames = map[string]string{
	"granite-4-0-h-small":                  "Granite 4.0 H Small",
	"qwen3-32b-awq":                        "Qwen3 32B AWQ",
	"deep-cogito-v2-llama-70b":             "Deep Cogito v2 Llama 70B",
	"infinitetalk":                         "InfiniteTalk",
	"black-forest-labs-flux-1-dev":         "Flux Dev",
	"black-forest-labs-flux-1-schnell":     "Flux Schnell",
	"black-forest-labs-flux-1-kontext-dev": "Flux Kontext Dev",
	"qwen-image-t2i":                       "Qwen Image",
	"qwen-image-t2i-lora":                  "Qwen Image LoRA",
	"qwen-image-edit":                      "Qwen Image Edit",
	"seedream-v4-t2i":                      "Seedream 4.0 T2I",
	"seedream-v4-edit":                     "Seedream 4.0 Edit",
	"seedream-3-0-t2i":                     "Seedream 3.0",
	"nano-banana-edit":                     "Nano Banana Edit",
	"seedance-1-0-pro":                     "Seedance 1.0 Pro",
	"wan-2-5":                              "WAN 2.5",
	"wan-2-2-t2v-720-lora":                 "WAN 2.2 I2V 720p LoRA",
	"wan-2-2-i2v-720":                      "WAN 2.2 I2V 720p",
	"wan-2-2-t2v-720":                      "WAN 2.2 T2V 720p",
	"wan-2-1-i2v-720":                      "WAN 2.1 I2V 720p",
	"wan-2-1-t2v-720":                      "WAN 2.1 T2V 720p",
	"kling-v2-1-i2v-pro":                   "Kling v2.1 I2V Pro",
	"sora-2-pro-i2v":                       "Sora 2 Pro I2V",
	"sora-2-i2v":                           "Sora 2 I2V",
	"whisper-v3-large":                     "Whisper V3 Large",
	"minimax-speech-02-hd":                 "Minimax Speech 02 HD",
}

// DisplayName returns the curated name for known ids, otherwise the id split
// on hyphens with each segment's first letter upper-cased.
func DisplayName(modelID string) string {
	if name, ok := displayNames[modelID]; ok {
		return name
	}

	parts := strings.Split(modelID, "-")
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		if size == 0 {
			continue
		}
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	return strings.Join(parts, " ")
}
