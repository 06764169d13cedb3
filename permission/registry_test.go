package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistrySkeleton(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []string{KeyFederation, KeySettings, KeyLibrary, KeyUpload}, r.Keys())
	assert.Equal(t, Set{
		KeyFederation: false,
		KeySettings:   false,
		KeyLibrary:    false,
		KeyUpload:     false,
	}, r.Skeleton())
	assert.False(t, r.Known(KeyModeration))
}

func TestRegistryRejectsAfterFreeze(t *testing.T) {
	r := NewRegistry()
	pos, err := r.Register("library")
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	_, err = r.Register("library")
	assert.Error(t, err)
	_, err = r.Register("")
	assert.Error(t, err)

	r.Freeze()
	_, err = r.Register("moderation")
	assert.Error(t, err)
	assert.Equal(t, []string{"library"}, r.Keys())
}

func TestSkeletonIsIndependentCopy(t *testing.T) {
	r := DefaultRegistry()
	a := r.Skeleton()
	a[KeyLibrary] = true

	assert.False(t, r.Skeleton()[KeyLibrary])
}

func TestSetHelpers(t *testing.T) {
	var empty Set
	assert.False(t, empty.Has(KeyLibrary))
	assert.NotNil(t, empty.Clone())

	s := Set{KeyModeration: true, KeyLibrary: false, KeySettings: true}
	assert.True(t, s.Has(KeyModeration))
	assert.False(t, s.Has(KeyLibrary))
	assert.False(t, s.Has(KeyUpload))
	assert.Equal(t, []string{KeyLibrary, KeyModeration, KeySettings}, s.Keys())
	assert.Equal(t, []string{KeyModeration, KeySettings}, s.Granted())

	c := s.Clone()
	c[KeyLibrary] = true
	assert.False(t, s[KeyLibrary])
}
