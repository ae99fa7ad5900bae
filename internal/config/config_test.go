package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_MocksWithoutProviderFile(t *testing.T) {
	t.Setenv("ENABLE_MOCKS", "true")

	cfg, err := LoadConfig("test")
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, "test", cfg.Environment)
	require.Len(t, cfg.LLMCfg.Router.Providers, 1)
	assert.Equal(t, entity.ProviderKindMock, cfg.LLMCfg.Router.Providers[0].Kind)
	assert.Equal(t, 60*time.Second, cfg.LLMCfg.CallTimeout)
	assert.Equal(t, 7, cfg.ProposalCfg.RelevanceThreshold)
	assert.Equal(t, 5, cfg.ProposalCfg.RelevanceTopK)
	assert.False(t, cfg.ValidatorCfg.SemanticEnabled)
}

func TestLoadConfig_RequiresProvidersWithoutMocks(t *testing.T) {
	t.Setenv("ENABLE_MOCKS", "false")

	_, err := LoadConfig("test")
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrMissingField)
}

func TestLoadConfig_ProvidersFile(t *testing.T) {
	path := writeFile(t, "providers.yaml", `
default_provider: backup
providers:
  - id: primary
    kind: OpenAI
    model: gpt-4o-mini
    api_key_env: TEST_PRIMARY_KEY
    priority: 1
    max_input_chars: 20000
    timeout: 45s
  - id: backup
    kind: gateway
    model: house
    base_url: http://llm-gateway:8080
    priority: 2
    purposes: [proposal]
`)
	t.Setenv("LLM_PROVIDERS_FILE", path)
	t.Setenv("TEST_PRIMARY_KEY", "sk-123")
	t.Setenv("SYNTHESIS_TOP_K", "3")

	cfg, err := LoadConfig("test")
	require.NoError(t, err)

	router := cfg.LLMCfg.Router
	assert.Equal(t, "backup", router.DefaultProvider)
	require.Len(t, router.Providers, 2)
	assert.Equal(t, entity.ProviderKindOpenAI, router.Providers[0].Kind)
	assert.Equal(t, "sk-123", router.Providers[0].APIKey)
	assert.Equal(t, 45*time.Second, router.Providers[0].Timeout)
	assert.Equal(t, []entity.LLMPurpose{entity.LLMPurposeProposal}, router.Providers[1].Purposes)
	assert.Equal(t, 3, cfg.ProposalCfg.RelevanceTopK)
}

func TestParseProviders_MissingKey(t *testing.T) {
	t.Setenv("TEST_ABSENT_KEY", "")
	_, err := ParseProviders([]byte(`
providers:
  - id: p
    kind: openai
    model: m
    api_key_env: TEST_ABSENT_KEY
`))
	assert.ErrorIs(t, err, entity.ErrMissingField)

	_, err = ParseProviders([]byte(`providers: []`))
	assert.ErrorIs(t, err, entity.ErrNoProviders)
}

func TestLoadConfig_CollectsAllValidationErrors(t *testing.T) {
	t.Setenv("ENABLE_MOCKS", "true")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SYNTHESIS_TOP_K", "0")

	_, err := LoadConfig("test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "SYNTHESIS_TOP_K must be positive")
}

func TestLoadConfig_CatalogFile(t *testing.T) {
	path := writeFile(t, "questions.json", `{"questions": [
		{"id": "budget", "question": "What is your budget?", "type": "BUDGET", "importance": 10}
	]}`)
	t.Setenv("ENABLE_MOCKS", "true")
	t.Setenv("QUESTION_CATALOG_FILE", path)

	cfg, err := LoadConfig("test")
	require.NoError(t, err)
	require.Len(t, cfg.QuestionCfg.Questions, 1)
	assert.Equal(t, entity.QuestionTypeBudget, cfg.QuestionCfg.Questions[0].Type)

	empty := writeFile(t, "empty.json", `{"questions": []}`)
	t.Setenv("QUESTION_CATALOG_FILE", empty)
	_, err = LoadConfig("test")
	assert.Error(t, err)
}

func TestGetEnvFile(t *testing.T) {
	assert.Equal(t, ".env.prod", getEnvFile("production"))
	assert.Equal(t, ".env.local", getEnvFile("dev"))
	assert.Equal(t, ".env.staging", getEnvFile("staging"))
}
