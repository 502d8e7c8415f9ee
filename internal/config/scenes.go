package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vowrite/vowrite/internal/logging"
	"github.com/vowrite/vowrite/internal/paths"
)

// Scene is a selectable output style whose template is appended to the
// effective system prompt.
type Scene struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

// builtinScenes are the shipped presets. "none" appends nothing.
var builtinScenes = []Scene{
	{
		ID:     "none",
		Name:   "None",
		Prompt: "",
	},
	{
		ID:     "email",
		Name:   "Email",
		Prompt: "Format the text as a professional email with a greeting and sign-off. Use clear paragraphs and a polite, formal tone.",
	},
	{
		ID:     "chat",
		Name:   "Chat",
		Prompt: "Keep it casual and conversational. Use short sentences, natural phrasing, and a friendly tone as if texting a friend.",
	},
	{
		ID:     "social",
		Name:   "Social Media",
		Prompt: "Make it concise and punchy for social media. Keep it short, add relevant emojis where natural, and use an engaging tone.",
	},
	{
		ID:     "blog",
		Name:   "Blog",
		Prompt: "Structure the text as a well-organized blog post. Use clear paragraphs and add subheadings where appropriate for readability.",
	},
	{
		ID:     "code",
		Name:   "Code Comment",
		Prompt: "Format as a technical code comment. Be concise and precise, preserve all technical terms in their original language, and use standard documentation conventions.",
	},
}

// SceneSet resolves scene ids to prompt templates.
type SceneSet struct {
	scenes []Scene
	byID   map[string]Scene
}

// BuiltinScenes returns a SceneSet with only the shipped presets.
func BuiltinScenes() *SceneSet {
	return newSceneSet(builtinScenes)
}

// LoadScenes returns the built-in presets merged with the user's scenes.yaml,
// if present. User scenes with a matching id override the preset.
func LoadScenes() *SceneSet {
	path, err := paths.ScenesPath()
	if err != nil {
		return BuiltinScenes()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// Missing file is the common case.
		return BuiltinScenes()
	}

	var user []Scene
	if err := yaml.Unmarshal(data, &user); err != nil {
		logging.L_warn("config: ignoring malformed scenes file", "path", path, "error", err)
		return BuiltinScenes()
	}

	merged := make([]Scene, len(builtinScenes))
	copy(merged, builtinScenes)
	known := map[string]int{}
	for i, s := range merged {
		known[s.ID] = i
	}
	for _, s := range user {
		if s.ID == "" {
			continue
		}
		if i, ok := known[s.ID]; ok {
			merged[i] = s
		} else {
			merged = append(merged, s)
		}
	}

	logging.L_debug("config: scenes loaded", "builtin", len(builtinScenes), "user", len(user))
	return newSceneSet(merged)
}

func newSceneSet(scenes []Scene) *SceneSet {
	byID := make(map[string]Scene, len(scenes))
	for _, s := range scenes {
		byID[s.ID] = s
	}
	return &SceneSet{scenes: scenes, byID: byID}
}

// All returns every scene in declaration order.
func (s *SceneSet) All() []Scene {
	return s.scenes
}

// PromptFor returns the template for a scene id, or "" for unknown ids and "none".
func (s *SceneSet) PromptFor(id string) string {
	return s.byID[id].Prompt
}
