package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTranslatedTextRequiresBothLocales(t *testing.T) {
	_, err := NewTranslatedText("Shirt", "")
	assert.Error(t, err)

	_, err = NewTranslatedText("", "قميص")
	assert.Error(t, err)

	text, err := NewTranslatedText("Shirt", "قميص")
	require.NoError(t, err)
	assert.Equal(t, "Shirt", text.En)
	assert.Equal(t, "قميص", text.Ar)
}

func TestTranslatedTextGetFallsBackToEnglish(t *testing.T) {
	text := TranslatedText{En: "Shirt", Ar: "قميص"}
	assert.Equal(t, "قميص", text.Get("ar"))
	assert.Equal(t, "Shirt", text.Get("en"))
	assert.Equal(t, "Shirt", text.Get("fr"))

	partial := TranslatedText{En: "Shirt"}
	assert.Equal(t, "Shirt", partial.Get("ar"))
}

func TestTranslatedTextScanValue(t *testing.T) {
	text := TranslatedText{En: "Shirt", Ar: "قميص"}

	raw, err := text.Value()
	require.NoError(t, err)

	var scanned TranslatedText
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, text, scanned)

	require.NoError(t, scanned.Scan(`{"en":"Cap","ar":"قبعة"}`))
	assert.Equal(t, "Cap", scanned.En)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned.En)

	assert.Error(t, scanned.Scan(42))
}
