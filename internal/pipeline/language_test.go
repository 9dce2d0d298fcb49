package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguagePair_Swap(t *testing.T) {
	p := LanguagePair{Source: Russian, Dest: English}

	swapped := p.Swap()
	assert.Equal(t, LanguagePair{Source: English, Dest: Russian}, swapped)
	assert.Equal(t, p, swapped.Swap())
}

func TestLanguagePair_CycleDestination(t *testing.T) {
	tests := []struct {
		in   LanguagePair
		want Language
	}{
		{LanguagePair{Russian, English}, Kazakh},
		{LanguagePair{Russian, Kazakh}, English},
		{LanguagePair{English, Kazakh}, Russian},
		{LanguagePair{English, Russian}, Kazakh},
		{LanguagePair{Kazakh, Russian}, English},
		{LanguagePair{Kazakh, English}, Russian},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			got := tt.in.CycleDestination()
			assert.Equal(t, tt.in.Source, got.Source)
			assert.Equal(t, tt.want, got.Dest)
		})
	}
}

func TestLanguagePair_CycleNeverHitsSource(t *testing.T) {
	for _, src := range Languages {
		for _, dst := range Languages {
			p := LanguagePair{Source: src, Dest: dst}
			for i := 0; i < 5; i++ {
				p = p.CycleDestination()
				if p.Dest == p.Source {
					t.Fatalf("cycle from %s reached the source language", p)
				}
			}
		}
	}

	// Unknown destination restarts at the head of the cycle
	got := LanguagePair{Source: Russian, Dest: "xx"}.CycleDestination()
	assert.Equal(t, English, got.Dest)
}

func TestNewLanguagePair(t *testing.T) {
	p, err := NewLanguagePair("kk", "ru")
	require.NoError(t, err)
	assert.Equal(t, "kk->ru", p.String())

	_, err = NewLanguagePair("ru", "ru")
	assert.Error(t, err)

	_, err = NewLanguagePair("de", "en")
	assert.Error(t, err)

	_, err = NewLanguagePair("en", "")
	assert.Error(t, err)
}

func TestDefaultLanguagePair(t *testing.T) {
	assert.Equal(t, "ru->en", DefaultLanguagePair.String())
}
