package service

import (
	"encoding/json"
	"os"
	"path/filepath"

	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// BodyStore keeps the JSON bodies of configs apart from their
// metadata rows, keyed by config id.
type BodyStore interface {
	Load(id string) (map[string]any, error)
	Save(id string, body map[string]any) error
	Remove(id string) error
}

type fileBodyStore struct {
	basePath string
}

// NewFileBodyStore stores each body as <basePath>/<id>.json.
func NewFileBodyStore(basePath string) BodyStore {
	return &fileBodyStore{basePath: basePath}
}

func (s *fileBodyStore) filename(id string) string {
	return filepath.Join(s.basePath, id+".json")
}

func (s *fileBodyStore) Load(id string) (map[string]any, error) {
	payload, err := os.ReadFile(s.filename(id))
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return body, nil
}

func (s *fileBodyStore) Save(id string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if err := os.WriteFile(s.filename(id), payload, 0644); err != nil {
		return xerrors.Wrap(err)
	}
	return nil
}

func (s *fileBodyStore) Remove(id string) error {
	if err := os.Remove(s.filename(id)); err != nil {
		return xerrors.Wrap(err)
	}
	return nil
}
