package files

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool"
	"github.com/urfave/cli/v3"
)

const maxContentBytes = 1 << 20 // 1 MiB per saved file

// service holds the blob store shared by the file tools
type service struct {
	bucket  string
	prefix  string
	storage adapter.Storage
}

func (s *service) init(ctx context.Context, client *tool.Client) (bool, error) {
	if s.storage != nil {
		return true, nil
	}

	if client.Storage != nil {
		s.storage = client.Storage
		return true, nil
	}

	if s.bucket == "" {
		return false, nil
	}

	storage, err := adapter.NewStorage(ctx, s.bucket)
	if err != nil {
		return false, goerr.Wrap(err, "failed to create storage client")
	}
	s.storage = storage
	return true, nil
}

func (s *service) key(name string) string {
	return path.Join(s.prefix, name)
}

// New returns the file tools backed by a shared blob store
func New() []tool.Tool {
	svc := &service{prefix: "files"}
	return []tool.Tool{
		&saveTool{svc: svc},
		&getTool{svc: svc},
		&listTool{svc: svc},
	}
}

type saveTool struct {
	svc *service
}

func (t *saveTool) Spec() *tool.Spec {
	return &tool.Spec{
		Name:        "files_save",
		Description: "Save text content to persistent file storage under the given name",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "File name to save the content under",
				},
				"content": {
					Type:        "string",
					Description: "Text content to store",
				},
			},
			Required: []string{"name", "content"},
		},
		RateLimit: &tool.RateLimit{MaxCalls: 30, Window: time.Minute},
		Timeout:   30 * time.Second,
	}
}

func (t *saveTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	name, _ := args["name"].(string)
	content, _ := args["content"].(string)

	if len(content) > maxContentBytes {
		return nil, goerr.Wrap(model.ErrValidation, "content exceeds size limit",
			goerr.V("size", len(content)), goerr.V("limit", maxContentBytes))
	}

	w, err := t.svc.storage.Put(ctx, t.svc.key(name))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open storage writer", goerr.V("name", name))
	}

	if _, err := w.Write([]byte(content)); err != nil {
		_ = w.Close()
		return nil, goerr.Wrap(err, "failed to write content", goerr.V("name", name))
	}
	if err := w.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to finalize upload", goerr.V("name", name))
	}

	return map[string]any{
		"name":  name,
		"bytes": len(content),
	}, nil
}

func (t *saveTool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return t.svc.init(ctx, client)
}

func (t *saveTool) Prompt(ctx context.Context) string {
	return "### File Storage\n\nUse `files_save`, `files_get` and `files_list` to persist and recall named text files across conversations."
}

func (t *saveTool) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "files-bucket",
			Usage:       "Cloud Storage bucket for the file tools",
			Sources:     cli.EnvVars("AGENT_FILES_BUCKET"),
			Destination: &t.svc.bucket,
		},
		&cli.StringFlag{
			Name:        "files-prefix",
			Usage:       "Object key prefix for stored files",
			Value:       "files",
			Sources:     cli.EnvVars("AGENT_FILES_PREFIX"),
			Destination: &t.svc.prefix,
		},
	}
}

type getTool struct {
	svc *service
}

func (t *getTool) Spec() *tool.Spec {
	return &tool.Spec{
		Name:        "files_get",
		Description: "Load the content of a previously saved file by name",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "File name to load",
				},
			},
			Required: []string{"name"},
		},
		Timeout: 30 * time.Second,
	}
}

func (t *getTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	name, _ := args["name"].(string)

	r, err := t.svc.storage.Get(ctx, t.svc.key(name))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open file", goerr.V("name", name))
	}
	defer r.Close()

	content, err := io.ReadAll(io.LimitReader(r, maxContentBytes+1))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read file", goerr.V("name", name))
	}
	if len(content) > maxContentBytes {
		return nil, goerr.New("file exceeds size limit", goerr.V("name", name))
	}

	return map[string]any{
		"name":    name,
		"content": string(content),
	}, nil
}

func (t *getTool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return t.svc.init(ctx, client)
}

func (t *getTool) Prompt(ctx context.Context) string { return "" }

func (t *getTool) Flags() []cli.Flag { return nil }

type listTool struct {
	svc *service
}

func (t *listTool) Spec() *tool.Spec {
	return &tool.Spec{
		Name:        "files_list",
		Description: "List saved file names, optionally filtered by a name prefix",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"prefix": {
					Type:        "string",
					Description: "Name prefix to filter by",
				},
			},
		},
		Timeout: 30 * time.Second,
	}
}

func (t *listTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	prefix, _ := args["prefix"].(string)

	keys, err := t.svc.storage.List(ctx, t.svc.key(prefix))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list files", goerr.V("prefix", prefix))
	}

	names := make([]string, 0, len(keys))
	base := t.svc.key("") + "/"
	for _, key := range keys {
		name := key
		if len(key) > len(base) && key[:len(base)] == base {
			name = key[len(base):]
		}
		names = append(names, name)
	}

	return map[string]any{
		"files": names,
		"count": len(names),
	}, nil
}

func (t *listTool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return t.svc.init(ctx, client)
}

func (t *listTool) Prompt(ctx context.Context) string { return "" }

func (t *listTool) Flags() []cli.Flag { return nil }
