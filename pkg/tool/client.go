package tool

import (
	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
	"github.com/thatamjad/cf-ai-amjad/pkg/repository"
)

// Client contains shared resources that tools can use
type Client struct {
	Repo     repository.Repository
	LLM      adapter.LLM
	Storage  adapter.Storage
	BigQuery adapter.BigQuery
}
