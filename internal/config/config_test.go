package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "CAPTURE_DIR", "VISION_PROVIDER", "VISION_MODEL", "PROMPT_LANGUAGE", "ANNOTATE", "WS_MAX_MESSAGE_BYTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != 8765 {
		t.Errorf("Expected port 8765, got %d", cfg.Port)
	}
	if cfg.CaptureDirectory != "captures" {
		t.Errorf("Expected capture dir 'captures', got %q", cfg.CaptureDirectory)
	}
	if cfg.VisionProvider != ProviderGemini || cfg.VisionModel != "gemini-1.5-flash" {
		t.Errorf("Unexpected provider/model %s/%s", cfg.VisionProvider, cfg.VisionModel)
	}
	if cfg.PromptLanguage != "fr" {
		t.Errorf("Expected prompt language fr, got %q", cfg.PromptLanguage)
	}
	if !cfg.Annotate {
		t.Error("Expected annotation enabled by default")
	}
	if cfg.WSMaxMessageBytes != 10*1024*1024 {
		t.Errorf("Expected 10 MiB read limit, got %d", cfg.WSMaxMessageBytes)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("VISION_PROVIDER", "OpenAI")
	t.Setenv("VISION_MODEL", "")
	t.Setenv("ANNOTATE", "false")
	t.Setenv("MARKER_RADIUS", "not-a-number")

	cfg := Load()

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Port)
	}
	if cfg.VisionProvider != ProviderOpenAI || cfg.VisionModel != "gpt-4o-mini" {
		t.Errorf("Unexpected provider/model %s/%s", cfg.VisionProvider, cfg.VisionModel)
	}
	if cfg.Annotate {
		t.Error("Expected annotation disabled")
	}
	if cfg.MarkerRadius != 12 {
		t.Errorf("Invalid MARKER_RADIUS should fall back to 12, got %d", cfg.MarkerRadius)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			VisionProvider: ProviderGemini,
			GeminiAPIKey:   "key",
			StreamURL:      "http://camera/index.m3u8",
			JPEGQuality:    90,
			MarkerRadius:   12,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid gemini", func(c *Config) {}, false},
		{"missing gemini key", func(c *Config) { c.GeminiAPIKey = "" }, true},
		{"missing openai key", func(c *Config) { c.VisionProvider = ProviderOpenAI }, true},
		{"openai with key", func(c *Config) { c.VisionProvider = ProviderOpenAI; c.OpenAIAPIKey = "k" }, false},
		{"ollama needs no key", func(c *Config) { c.VisionProvider = ProviderOllama; c.GeminiAPIKey = "" }, false},
		{"unknown provider", func(c *Config) { c.VisionProvider = "claude" }, true},
		{"empty stream", func(c *Config) { c.StreamURL = "" }, true},
		{"bad quality", func(c *Config) { c.JPEGQuality = 0 }, true},
		{"bad radius", func(c *Config) { c.MarkerRadius = 0 }, true},
	}

	for _, tt := range tests {
		cfg := valid()
		tt.mutate(cfg)
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
