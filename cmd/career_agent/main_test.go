package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ujjwalparashar30/github-assisstance/internal/config"
	"github.com/ujjwalparashar30/github-assisstance/internal/llm"
	"github.com/ujjwalparashar30/github-assisstance/internal/questionnaire"
	"github.com/ujjwalparashar30/github-assisstance/internal/session"
)

// TestMain runs before all tests and loads .env if available
func TestMain(m *testing.M) {
	_ = godotenv.Load()
	os.Exit(m.Run())
}

// execute runs the root command with args in an empty working directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	configPath, logJSON, logDebug = "", false, false
	recommendKeywords, recommendDryRun, recommendLevel = nil, false, "Beginner"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQuestionsCommand(t *testing.T) {
	out, err := execute(t, "questions")
	require.NoError(t, err)

	var questions []questionnaire.Question
	require.NoError(t, json.Unmarshal([]byte(out), &questions))
	assert.Len(t, questions, len(questionnaire.ListQuestions()))
}

func TestRecommendCommand_DryRun(t *testing.T) {
	out, err := execute(t, "recommend", "--level", "Intermediate", "-k", "go", "-k", "web frameworks", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, `is:issue is:open go "web frameworks" label:"help wanted" stars:>100`+"\n", out)
}

func TestRecommendCommand_Search(t *testing.T) {
	var gotQuery, gotAuth string
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_count":1,"items":[{"id":7,"title":"Fix flaky test","html_url":"https://github.com/acme/x/issues/7","labels":[{"name":"good first issue"}]}]}`))
	}))
	defer gh.Close()

	t.Setenv("GITHUB_BASE_URL", gh.URL)
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	out, err := execute(t, "recommend", "-k", "cli")
	require.NoError(t, err)
	assert.Contains(t, gotQuery, `label:"good first issue"`)
	assert.Equal(t, "Bearer ghp_test", gotAuth)
	assert.Contains(t, out, "Fix flaky test")
	assert.Contains(t, out, "good first issue")
}

func TestServeCommand_RequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestServeCommand_RequiresAPIKey(t *testing.T) {
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_API_KEY", "")
	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestPruneCommand_RequiresPostgres(t *testing.T) {
	_, err := execute(t, "prune-sessions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := &config.Config{Session: config.SessionConfig{Store: config.StoreMemory, TTL: config.DefaultSessionTTL}}
	store, closeStore, err := openStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &session.MemoryStore{}, store)
}

func TestOpenStore_RedisUnreachable(t *testing.T) {
	cfg := &config.Config{
		Session: config.SessionConfig{Store: config.StoreRedis, TTL: config.DefaultSessionTTL},
		Redis:   config.RedisConfig{Addr: "127.0.0.1:1"},
	}
	_, _, err := openStore(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestLLMConfig(t *testing.T) {
	cfg := llmConfig(config.LLMConfig{Provider: "openai", Model: "gpt-4.1", BaseURL: "http://localhost:11434/v1"})
	assert.Equal(t, llm.ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4.1", cfg.Model(llm.TierStandard))
	assert.Equal(t, "gpt-4.1", cfg.Model(llm.TierAdvanced))
	assert.Equal(t, "http://localhost:11434/v1", cfg.BaseURL)

	defaults := llmConfig(config.LLMConfig{Provider: "gemini"})
	assert.Equal(t, llm.DefaultConfig().Model(llm.TierAdvanced), defaults.Model(llm.TierAdvanced))
}
