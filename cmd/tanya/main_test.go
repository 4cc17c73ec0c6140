package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleFAQ = `Q: What is an emergency fund?
A: An emergency fund is money set aside to cover three to six months of essential expenses.

Q: How much should I save for retirement?
A: A common guideline is to save fifteen percent of your income for retirement.
`

// clearEnv keeps the developer's environment out of config loading.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		envOpenAIAPIKey, envOpenAIBaseURL, envServerAPIKey, envLLMModel,
		envEmbeddingModel, envAgentDomain, envDocsDir, envIndexPath,
	} {
		t.Setenv(name, "")
	}
}

// writeProject creates a config with the mock embedder, a docs folder holding the sample FAQ,
// and returns the config path.
func writeProject(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "sample_faq.txt"), []byte(sampleFAQ), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := `documents:
  directory: ./docs
index:
  path: ./index
embedding:
  provider: mock
  dimensions: 64
` + extra
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"budget"}, "budget"},
		{"multiple words", []string{"emergency", "fund"}, "emergency fund"},
		{"quoted phrase", []string{"emergency fund"}, "emergency fund"},
		{"whitespace only", []string{"  ", ""}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)

	got, err := resolveConfigPath("")
	if err != nil || got != "" {
		t.Fatalf("resolveConfigPath(\"\") = %q, %v; want defaults", got, err)
	}

	if err := os.WriteFile(defaultConfigFile, []byte("debug: false\n"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err = resolveConfigPath("")
	if err != nil || got != defaultConfigFile {
		t.Fatalf("resolveConfigPath(\"\") = %q, %v; want %q", got, err, defaultConfigFile)
	}

	if _, err := resolveConfigPath(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for explicit missing config")
	}
}

func TestLoadConfig_envOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeProject(t, "llm:\n  model: gpt-4o-mini\n")
	t.Setenv(envLLMModel, "gpt-3.5-turbo")
	t.Setenv(envOpenAIAPIKey, "sk-env")
	t.Setenv(envServerAPIKey, "secret")
	t.Setenv(envAgentDomain, "tax")

	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.LLM.Model != "gpt-3.5-turbo" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "sk-env" || cfg.Embedding.APIKey != "sk-env" {
		t.Errorf("API keys = %q, %q", cfg.LLM.APIKey, cfg.Embedding.APIKey)
	}
	if cfg.Server.APIKey != "secret" {
		t.Errorf("Server.APIKey = %q", cfg.Server.APIKey)
	}
	if cfg.Agent.Domain != "tax" {
		t.Errorf("Agent.Domain = %q", cfg.Agent.Domain)
	}
	if want := filepath.Join(filepath.Dir(path), "docs"); cfg.Documents.Directory != want {
		t.Errorf("Documents.Directory = %q, want %q", cfg.Documents.Directory, want)
	}
}

func TestLoadConfig_envPathsAreAbsolute(t *testing.T) {
	clearEnv(t)
	path := writeProject(t, "")
	dir := t.TempDir()
	chdirForTest(t, dir)
	t.Setenv(envIndexPath, "idx")

	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(cfg.Index.Path) || filepath.Base(cfg.Index.Path) != "idx" {
		t.Errorf("Index.Path = %q", cfg.Index.Path)
	}
}

func TestLoadConfig_invalid(t *testing.T) {
	clearEnv(t)
	path := writeProject(t, "chunking:\n  size: 100\n  overlap: 100\n")
	if _, _, err := loadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestIndexAndStatusCommands(t *testing.T) {
	clearEnv(t)
	path := writeProject(t, "")

	out, err := execute(t, "--config", path, "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "not built") {
		t.Errorf("status before index = %q", out)
	}

	out, err = execute(t, "--config", path, "index")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Indexed 1 documents") {
		t.Errorf("index output = %q", out)
	}

	out, err = execute(t, "--config", path, "index")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("second index output = %q", out)
	}

	out, err = execute(t, "--config", path, "index", "--rebuild")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Indexed 1 documents") {
		t.Errorf("rebuild output = %q", out)
	}

	out, err = execute(t, "--config", path, "status", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var status struct {
		Exists         bool   `json:"exists"`
		Chunks         int64  `json:"chunks"`
		Sources        int64  `json:"sources"`
		EmbeddingModel string `json:"embedding_model"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("status json: %v\n%s", err, out)
	}
	if !status.Exists || status.Chunks < 1 || status.Sources != 1 {
		t.Errorf("status = %+v", status)
	}
	if status.EmbeddingModel != "mock-hash" {
		t.Errorf("embedding_model = %q", status.EmbeddingModel)
	}
}

func TestIndexCommand_emptyDocuments(t *testing.T) {
	clearEnv(t)
	path := writeProject(t, "")
	if err := os.Remove(filepath.Join(filepath.Dir(path), "docs", "sample_faq.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", path, "index"); err == nil {
		t.Fatal("expected error for empty documents directory")
	}
}

func TestAskCommand(t *testing.T) {
	clearEnv(t)
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) > 0 {
			prompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]string{
					"role":    "assistant",
					"content": "Keep three to six months of expenses [sample_faq.txt].",
				},
			}},
		})
	}))
	defer srv.Close()

	path := writeProject(t, "llm:\n  base_url: "+srv.URL+"/v1\n  api_key: sk-test\n")
	out, err := execute(t, "--config", path, "ask", "--format", "json", "What", "is", "an", "emergency", "fund?")
	if err != nil {
		t.Fatal(err)
	}
	var answer struct {
		Answer  string   `json:"answer"`
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal([]byte(out), &answer); err != nil {
		t.Fatalf("answer json: %v\n%s", err, out)
	}
	if !strings.Contains(answer.Answer, "three to six months") {
		t.Errorf("answer = %q", answer.Answer)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "sample_faq.txt" {
		t.Errorf("sources = %v", answer.Sources)
	}
	if !strings.Contains(prompt, "emergency fund") {
		t.Errorf("system prompt does not carry retrieved context: %q", prompt)
	}
}

func TestAskCommand_badFormat(t *testing.T) {
	clearEnv(t)
	path := writeProject(t, "")
	if _, err := execute(t, "--config", path, "ask", "--format", "xml", "hello"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "tanya version") {
		t.Errorf("version output = %q", out)
	}
}

func TestInitCommand(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "--config", path, "init")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Wrote") {
		t.Errorf("init output = %q", out)
	}

	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunking.Size != 800 || cfg.Chunking.OverlapOrDefault() != 150 || cfg.Retrieval.K != 5 {
		t.Errorf("starter config = %+v", cfg)
	}
	if want := filepath.Join(filepath.Dir(path), "data", "docs"); cfg.Documents.Directory != want {
		t.Errorf("Documents.Directory = %q, want %q", cfg.Documents.Directory, want)
	}

	if _, err := execute(t, "--config", path, "init"); err == nil {
		t.Error("expected error when config exists")
	}
	if _, err := execute(t, "--config", path, "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

// chdirForTest changes the working directory for the duration of the test
// and restores it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
