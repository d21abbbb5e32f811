package id_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/hume/id"
)

func TestNewHumeID(t *testing.T) {
	a := id.NewHumeID()
	b := id.NewHumeID()

	assert.True(t, strings.HasPrefix(a.String(), "hume_"))
	assert.Equal(t, id.PrefixHume, a.Prefix())
	assert.NotEqual(t, a.String(), b.String())
}

func TestParseHumeID(t *testing.T) {
	orig := id.NewHumeID()
	parsed, err := id.ParseHumeID(orig.String())
	require.NoError(t, err)
	assert.Equal(t, orig.String(), parsed.String())

	_, err = id.ParseHumeID(id.NewInstanceID().String())
	assert.Error(t, err)

	_, err = id.ParseHumeID("")
	assert.Error(t, err)
}

func TestScanAndValue(t *testing.T) {
	orig := id.NewHumeID()
	v, err := orig.Value()
	require.NoError(t, err)

	var scanned id.ID
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, orig.String(), scanned.String())

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsNil())

	nilValue, err := id.Nil.Value()
	require.NoError(t, err)
	assert.Nil(t, nilValue)
}
