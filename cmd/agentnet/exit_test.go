package main

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentnet/internal/domain"
)

func TestExitFor(t *testing.T) {
	assert.NoError(t, exitFor(nil))

	plain := errors.New("boom")
	assert.Equal(t, plain, exitFor(plain))

	cases := map[domain.ErrorCode]int{
		domain.CodeInvalidArgument:   2,
		domain.CodeCatalogNotFound:   3,
		domain.CodeSchemaValidation:  4,
		domain.CodeEmbeddingProvider: 5,
		domain.CodeInternal:          1,
	}
	for code, want := range cases {
		err := exitFor(domain.E(code, "op", "msg", nil))
		var exitErr exitError
		require.ErrorAs(t, err, &exitErr, string(code))
		assert.Equal(t, want, exitErr.code, string(code))
		assert.Contains(t, exitErr.message, string(code))
	}
}

func TestSearchFlags_DirectOnlyWhenSet(t *testing.T) {
	var flags searchFlags
	cmd := &cobra.Command{Use: "search"}
	flags.bind(cmd)

	req := flags.request(cmd, "q", "")
	assert.Nil(t, req.DirectOption)

	require.NoError(t, cmd.Flags().Set("direct", "false"))
	require.NoError(t, cmd.Flags().Set("mode", "first_hit"))
	req = flags.request(cmd, "q", "catalog.json")
	require.NotNil(t, req.DirectOption)
	assert.False(t, *req.DirectOption)
	assert.Equal(t, domain.RankingFirstHit, req.Mode)
	assert.Equal(t, "catalog.json", req.CatalogPath)
}
