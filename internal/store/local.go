package store

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	daas "github.com/totegamma/daas-playground"
	"github.com/totegamma/daas-playground/internal/domain"
)

const (
	cacheExpiration      = 10 * time.Minute
	cacheCleanupInterval = 15 * time.Minute
)

// LocalStorage is the durable staging store: one immutable file per
// document revision, sharded by the four identity components. The
// revision-equality check in Upsert is the concurrency-control
// mechanism; there is no separate lock.
type LocalStorage struct {
	root string

	// revisions caches the latest revision per document id. All writers
	// in this process go through Upsert, which refreshes the entry; the
	// directory listing remains the source of truth on a miss.
	revisions *cache.Cache
}

// NewLocalStorage creates a store rooted at the given directory.
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{
		root:      root,
		revisions: cache.New(cacheExpiration, cacheCleanupInterval),
	}
}

func (s *LocalStorage) shardDir(id string) (string, error) {
	parts := strings.Split(id, daas.Delimiter)
	if len(parts) != 4 {
		return "", errors.Errorf("malformed document id %q", id)
	}
	return filepath.Join(s.root, parts[0], parts[1], parts[2], parts[3]), nil
}

func (s *LocalStorage) docPath(id, rev string) (string, error) {
	dir, err := s.shardDir(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, id+daas.Delimiter+rev), nil
}

// latestRevision resolves the numerically greatest revision present for
// the identity by listing its shard directory.
func (s *LocalStorage) latestRevision(id string) (int, bool, error) {
	dir, err := s.shardDir(id)
	if err != nil {
		return 0, false, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "LocalStorage.latestRevision: could not list the shard directory")
	}

	prefix := id + daas.Delimiter
	latest := -1
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		rev, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}
		if rev > latest {
			latest = rev
		}
	}

	if latest < 0 {
		return 0, false, nil
	}
	return latest, true, nil
}

// Upsert persists the document as a new immutable revision file. A
// document carrying a revision that no longer matches the latest one
// fails with a StaleRevisionError and leaves storage unchanged. The
// returned document carries the assigned revision.
func (s *LocalStorage) Upsert(doc *daas.Document) (*daas.Document, error) {
	latest, found, err := s.latestRevision(doc.ID)
	if err != nil {
		return nil, err
	}

	if doc.Revision != nil {
		if !found {
			return nil, domain.StaleRevisionError{ID: doc.ID, Given: *doc.Revision, Latest: "none"}
		}
		if *doc.Revision != strconv.Itoa(latest) {
			return nil, domain.StaleRevisionError{ID: doc.ID, Given: *doc.Revision, Latest: strconv.Itoa(latest)}
		}
	}

	next := 0
	if found {
		next = latest + 1
	}
	rev := strconv.Itoa(next)

	updated := *doc
	updated.Revision = &rev
	updated.LastUpdated = uint64(time.Now().Unix())

	dir, err := s.shardDir(doc.ID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "LocalStorage.Upsert: could not create the shard directory")
	}

	serialized, err := updated.Serialize()
	if err != nil {
		return nil, errors.Wrap(err, "LocalStorage.Upsert: could not serialize the document")
	}

	path := filepath.Join(dir, doc.ID+daas.Delimiter+rev)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			// a concurrent writer minted this revision first
			return nil, domain.StaleRevisionError{ID: doc.ID, Given: rev, Latest: rev}
		}
		return nil, errors.Wrap(err, "LocalStorage.Upsert: could not create the revision file")
	}
	if _, err := file.Write(serialized); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "LocalStorage.Upsert: could not write the revision file")
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "LocalStorage.Upsert: could not sync the revision file")
	}
	if err := file.Close(); err != nil {
		return nil, errors.Wrap(err, "LocalStorage.Upsert: could not close the revision file")
	}

	s.revisions.Set(doc.ID, next, cache.DefaultExpiration)

	return &updated, nil
}

// GetByID reads the explicit revision when given, otherwise the latest
// one present for the identity.
func (s *LocalStorage) GetByID(id string, revision *string) (*daas.Document, error) {
	rev := ""
	if revision != nil {
		rev = *revision
	} else {
		if cached, ok := s.revisions.Get(id); ok {
			rev = strconv.Itoa(cached.(int))
		} else {
			latest, found, err := s.latestRevision(id)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, domain.NotFoundError{ID: id}
			}
			rev = strconv.Itoa(latest)
			s.revisions.Set(id, latest, cache.DefaultExpiration)
		}
	}

	path, err := s.docPath(id, rev)
	if err != nil {
		return nil, err
	}
	serialized, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFoundError{ID: id, Revision: rev}
		}
		return nil, errors.Wrap(err, "LocalStorage.GetByID: could not read the revision file")
	}

	doc, err := daas.FromSerialized(serialized)
	if err != nil {
		return nil, errors.Wrap(err, "LocalStorage.GetByID: could not deserialize the document")
	}
	return doc, nil
}

// MarkAsProcessed re-reads the document's own revision, flips the process
// indicator, and rewrites that same revision file in place. This is the
// one exception to revision-file immutability: it records a terminal
// status on an already-persisted revision rather than minting a new one.
func (s *LocalStorage) MarkAsProcessed(doc *daas.Document) (*daas.Document, error) {
	if doc.Revision == nil {
		return nil, domain.NotFoundError{ID: doc.ID}
	}

	current, err := s.GetByID(doc.ID, doc.Revision)
	if err != nil {
		return nil, err
	}

	current.ProcessInd = true
	current.LastUpdated = uint64(time.Now().Unix())

	serialized, err := current.Serialize()
	if err != nil {
		return nil, errors.Wrap(err, "LocalStorage.MarkAsProcessed: could not serialize the document")
	}

	path, err := s.docPath(doc.ID, *doc.Revision)
	if err != nil {
		return nil, err
	}

	// write-then-rename so a crash mid-write cannot destroy the staged
	// revision
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, serialized, 0o644); err != nil {
		return nil, errors.Wrap(err, "LocalStorage.MarkAsProcessed: could not write the temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, errors.Wrap(err, "LocalStorage.MarkAsProcessed: could not replace the revision file")
	}

	return current, nil
}
