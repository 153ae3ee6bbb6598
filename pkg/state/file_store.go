package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"

	"github.com/goliatone/go-patcher/bag"
	"gopkg.in/yaml.v3"
)

// FileStore persists snapshots as YAML documents under Root, one file per
// Ref.Identifier. Only plain option values survive a round trip. Lists holding
// callables are written empty, so a registry skeleton reloads as empty slots
// that accept new registrations.
type FileStore struct {
	Root string
}

type fileRecord struct {
	Meta    Meta     `yaml:"meta"`
	Options *bag.Bag `yaml:"options"`
}

func (s FileStore) path(ref Ref) (string, error) {
	key, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, filepath.FromSlash(key)+".yaml"), nil
}

func (s FileStore) Load(_ context.Context, ref Ref) (*bag.Bag, Meta, bool, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, Meta{}, false, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: reading %s: %w", path, err)
	}
	var record fileRecord
	if err := yaml.Unmarshal(raw, &record); err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: parsing %s: %w", path, err)
	}
	if record.Options == nil {
		record.Options = bag.New()
	}
	return record.Options, record.Meta, true, nil
}

func (s FileStore) Save(_ context.Context, ref Ref, snapshot *bag.Bag, meta Meta) (Meta, error) {
	path, err := s.path(ref)
	if err != nil {
		return Meta{}, err
	}
	if snapshot == nil {
		snapshot = bag.New()
	}
	raw, err := yaml.Marshal(fileRecord{Meta: meta, Options: persistable(snapshot)})
	if err != nil {
		return Meta{}, fmt.Errorf("state: encoding %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Meta{}, fmt.Errorf("state: creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return Meta{}, fmt.Errorf("state: writing %s: %w", path, err)
	}
	return cloneMeta(meta), nil
}

// persistable returns a copy of snapshot with every list of callables
// emptied.
func persistable(snapshot *bag.Bag) *bag.Bag {
	out := bag.New()
	snapshot.Range(func(key string, value any) bool {
		switch v := value.(type) {
		case *bag.Bag:
			out.Set(key, persistable(v))
		default:
			if holdsFuncs(v) {
				out.Set(key, []any{})
			} else {
				out.Set(key, v)
			}
		}
		return true
	})
	return out
}

func holdsFuncs(value any) bool {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return false
	}
	if rv.Type().Elem().Kind() == reflect.Func {
		return true
	}
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i)
		if item.Kind() == reflect.Interface {
			item = item.Elem()
		}
		if item.Kind() == reflect.Func {
			return true
		}
	}
	return false
}
