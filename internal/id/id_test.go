package id_test

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/rohitxdev/nftsol-api/internal/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := id.New(id.Request)
	b := id.New(id.Request)
	assert.NotEqual(t, a, b)

	raw, ok := strings.CutPrefix(a, "req_")
	require.True(t, ok)
	_, err := ulid.Parse(raw)
	assert.NoError(t, err)
}
