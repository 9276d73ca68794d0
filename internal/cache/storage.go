package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/Aman-CERP/reposcout/internal/model"
)

const (
	RepoCacheFile = "repositories_cache.json"
	DocCacheFile  = "documentation_cache.json"

	repoSchemaVersion = "1.0"
	docSchemaVersion  = "2.0"
)

type repoEnvelope struct {
	Repositories []model.Repository `json:"repositories"`
	Timestamp    float64            `json:"timestamp"`
	Version      string             `json:"version"`
}

type docEnvelope struct {
	Cache     map[string]docIndexRecord `json:"cache"`
	Timestamp float64                   `json:"timestamp"`
	Version   string                    `json:"version"`
}

// docIndexRecord and docFileRecord use pointers where a missing field
// needs a non-zero default on load.
type docIndexRecord struct {
	RepoPath string                   `json:"repo_path"`
	DocType  *model.DocType           `json:"doc_type,omitempty"`
	BestFile string                   `json:"best_file,omitempty"`
	Files    map[string]docFileRecord `json:"files"`
}

type docFileRecord struct {
	Path     string         `json:"path"`
	Name     string         `json:"name"`
	DocType  *model.DocType `json:"doc_type,omitempty"`
	Content  string         `json:"content"`
	Size     int            `json:"size"`
	CachedAt float64        `json:"cached_at"`
	Ref      *string        `json:"ref,omitempty"`
}

func toRecord(idx *model.DocIndex) docIndexRecord {
	dt := idx.DocType
	rec := docIndexRecord{
		RepoPath: idx.RepoPath,
		DocType:  &dt,
		BestFile: idx.BestFile,
		Files:    make(map[string]docFileRecord, len(idx.Files)),
	}
	for p, f := range idx.Files {
		fdt, ref := f.DocType, f.Ref
		rec.Files[p] = docFileRecord{
			Path: f.Path, Name: f.Name, DocType: &fdt, Content: f.Content,
			Size: f.Size, CachedAt: f.CachedAt, Ref: &ref,
		}
	}
	return rec
}

func fromRecord(key string, rec docIndexRecord) *model.DocIndex {
	idx := &model.DocIndex{
		RepoPath: rec.RepoPath,
		DocType:  model.DocReadme,
		BestFile: rec.BestFile,
		Files:    make(map[string]model.DocFile, len(rec.Files)),
	}
	if idx.RepoPath == "" {
		idx.RepoPath = key
	}
	if rec.DocType != nil {
		idx.DocType = *rec.DocType
	}
	for p, fr := range rec.Files {
		f := model.DocFile{
			Path: fr.Path, Name: fr.Name, DocType: idx.DocType, Content: fr.Content,
			Size: fr.Size, CachedAt: fr.CachedAt, Ref: model.DefaultBranch,
		}
		if f.Path == "" {
			f.Path = p
		}
		if fr.DocType != nil {
			f.DocType = *fr.DocType
		}
		if fr.Ref != nil {
			f.Ref = *fr.Ref
		}
		idx.Files[p] = f
	}
	return idx
}

// migrateDocs upgrades an envelope in place to the current schema.
// Version 1.0 stored doc_type on files only; the index type is lifted
// from its files (first path in sorted order).
func migrateDocs(env *docEnvelope) error {
	switch env.Version {
	case docSchemaVersion:
		return nil
	case "", "1.0":
		for key, rec := range env.Cache {
			if rec.DocType != nil {
				continue
			}
			paths := make([]string, 0, len(rec.Files))
			for p := range rec.Files {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				if dt := rec.Files[p].DocType; dt != nil {
					t := *dt
					rec.DocType = &t
					break
				}
			}
			if rec.BestFile == "" && len(paths) > 0 {
				rec.BestFile = paths[0]
			}
			env.Cache[key] = rec
		}
		env.Version = docSchemaVersion
		return nil
	default:
		return fmt.Errorf("unsupported documentation cache version %q", env.Version)
	}
}

// writeJSONAtomic writes v to path through a temp file and rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
