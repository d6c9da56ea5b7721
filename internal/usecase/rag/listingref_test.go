package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMentionedListingID(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Gostei do 3f2a9c1e-7b4d-4e8a-9c0b-1a2b3c4d5e6f, está disponível?", "3f2a9c1e-7b4d-4e8a-9c0b-1a2b3c4d5e6f"},
		{"Quero saber mais sobre a ref A-123", "A-123"},
		{"Referência: PT2041.", "PT2041"},
		{"o imóvel 4471 ainda está à venda?", "4471"},
		{"código #X9", "X9"},
		{"o imóvel é bonito", ""},
		{"procuro imóvel T3 em Lisboa", ""},
		{"um imovel t2+1 perto do metro", ""},
		{"imóvel T3, ref 5521", "5521"},
		{"de preferência 2 quartos", ""},
		{"sem referência nenhuma", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, MentionedListingID(tt.text))
		})
	}
}
