package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractNames(t *testing.T) {
	content := "Site maintained by Jane Doe. See our Privacy Policy. Contact: John Quincy Smith."
	artifacts := ExtractNames(content, "https://example.com")

	values := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		values = append(values, a.Value)
	}
	assert.Contains(t, values, "Jane Doe")
	assert.Contains(t, values, "John Quincy Smith")
	assert.NotContains(t, values, "Privacy Policy")
}

func TestExtractUsernames(t *testing.T) {
	content := "Posted by @zephyr42 yesterday. author: old_timer99"
	artifacts := ExtractUsernames(content, "https://forum.example.com")

	require.Len(t, artifacts, 2)
	assert.Equal(t, "zephyr42", artifacts[0].Value)
	assert.Equal(t, "old_timer99", artifacts[1].Value)
	assert.NotEmpty(t, artifacts[0].Context)
}

func TestExtractWalletAddresses(t *testing.T) {
	content := "Donate: 1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa or 0x52908400098527886E0F7030069857D2E4169EE7"
	artifacts := ExtractWalletAddresses(content, "https://example.com")

	require.Len(t, artifacts, 2)
	assert.Equal(t, "bitcoin", artifacts[0].Subtype)
	assert.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", artifacts[0].Value)
	assert.Equal(t, "ethereum", artifacts[1].Subtype)
}

func TestExtractCode(t *testing.T) {
	content := "Example:\n```go\nfmt.Println(\"hi\")\n```\nand an empty block ``` ```"
	artifacts := ExtractCode(content, "https://example.com")

	require.Len(t, artifacts, 1)
	assert.Equal(t, "fmt.Println(\"hi\")", artifacts[0].Value)
}

func TestRegistryRejectsBadRegistration(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	require.NoError(t, r.Register("name", ExtractNames))
	assert.Error(t, r.Register("name", ExtractNames), "duplicate type")
	assert.Error(t, r.Register("", ExtractNames), "empty type")
	assert.Error(t, r.Register("code", nil), "nil extractor")
}

func TestRegistryEnforcesContract(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	// An extractor that mislabels its output and forgets mandatory
	// fields: the registry fixes the type and drops the invalid rest.
	require.NoError(t, r.Register("username", func(content, sourceURL string) []Artifact {
		return []Artifact{
			{Type: "name", Value: "zephyr42", Confidence: 0.6},
			{Value: "", Confidence: 0.6},
			{Value: "ok", Confidence: 2.0},
		}
	}))

	artifacts := r.Extract("whatever", "https://example.com")
	require.Len(t, artifacts, 1)
	assert.Equal(t, "username", artifacts[0].Type)
	assert.Equal(t, "https://example.com", artifacts[0].SourceURL)
}

func TestDefaultRegistryTypes(t *testing.T) {
	r := DefaultRegistry(zap.NewNop())
	assert.Equal(t, []string{"code", "name", "username", "wallet_address"}, r.Types())
}
