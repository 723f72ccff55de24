package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery/service/internal/apperr"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Nature", "nature"},
		{"  Street  Photography ", "street-photography"},
		{"Café Crème", "cafe-creme"},
		{"Straße & Brücke", "strasse-and-brucke"},
		{"Łódź 2024!!", "lodz-2024"},
		{"---Black/White---", "black-white"},
		{"日本", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Make(tt.in)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.True(t, Valid(got), "Make output must be a valid slug")
			}
		})
	}
}

func TestMakeIsDeterministic(t *testing.T) {
	for _, name := range []string{"Nature", "Årets Bilder", "Portraits: 2019 – 2021"} {
		assert.Equal(t, Make(name), Make(name))
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("nature"))
	assert.True(t, Valid("summer-2024"))
	assert.False(t, Valid("Nature"))
	assert.False(t, Valid("-nature"))
	assert.False(t, Valid("nature--wild"))
	assert.False(t, Valid("na ture"))
	assert.False(t, Valid(""))
}

func TestResolve(t *testing.T) {
	given := "my-own"
	got, err := Resolve(&given, "Ignored Name")
	require.NoError(t, err)
	assert.Equal(t, "my-own", got)

	empty := ""
	got, err = Resolve(&empty, "Nature")
	require.NoError(t, err)
	assert.Equal(t, "nature", got)

	got, err = Resolve(nil, "Street Photography")
	require.NoError(t, err)
	assert.Equal(t, "street-photography", got)

	_, err = Resolve(nil, "!!!")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
