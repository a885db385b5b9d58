package adapter_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
)

func TestChunkWordsConcat(t *testing.T) {
	cases := []string{
		"hello world",
		"one",
		"  leading spaces",
		"trailing spaces  ",
		"line\nbreaks\nand\ttabs here",
		"",
	}

	for _, text := range cases {
		chunks := adapter.ChunkWords(text)
		gt.Equal(t, strings.Join(chunks, ""), text)
	}
}

func TestChunkWordsGranularity(t *testing.T) {
	chunks := adapter.ChunkWords("alpha beta gamma")
	gt.A(t, chunks).Length(3)
	gt.Equal(t, chunks[0], "alpha ")
	gt.Equal(t, chunks[1], "beta ")
	gt.Equal(t, chunks[2], "gamma")
}
