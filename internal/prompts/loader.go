// Package prompts provides a loader for externalized model prompt templates.
// Prompts are stored as JSON files and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// cache stores parsed prompt files to avoid repeated JSON parsing
var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

// Prompt files and keys.
const (
	ImageFile            = "image.json"
	ImageDescriptionKey  = "image_description"
	imageDescriptionNote = "Note"
	noExtraInstructions  = "(none)"

	VideoFile          = "video.json"
	VideoAnalysisKey   = "video_analysis"
	videoChallengeSlot = "Challenge"
)

// ImageDescription returns the image-to-prompt instructions with the
// user's optional note filled in.
func ImageDescription(note string) (string, error) {
	template, err := Get(ImageFile, ImageDescriptionKey)
	if err != nil {
		return "", err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		note = noExtraInstructions
	}
	return Format(template, map[string]string{imageDescriptionNote: note}), nil
}

// VideoAnalysis returns the soundtrack review instructions for a campaign
// challenge.
func VideoAnalysis(challenge string) (string, error) {
	template, err := Get(VideoFile, VideoAnalysisKey)
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{videoChallengeSlot: strings.TrimSpace(challenge)}), nil
}

// Get retrieves a prompt by filename and key.
// The filename should not include the path (e.g., "image.json").
// Returns an error if the file or key is not found.
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}

	return prompt, nil
}

// Format replaces template placeholders in the form {{.Key}} with values from data.
func Format(template string, data map[string]string) string {
	result := template
	for key, value := range data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// loadFile loads and caches a prompt file.
func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	if prompts, exists := cache[filename]; exists {
		cacheMu.RUnlock()
		return prompts, nil
	}
	cacheMu.RUnlock()

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()

	return prompts, nil
}

// ClearCache clears the prompt cache. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}
