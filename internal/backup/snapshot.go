// Package backup keeps a git history of the stored collections and can
// publish snapshot bundles to object storage.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

const (
	branchName = "main"
	fileSuffix = ".json"
)

// Commit describes one snapshot.
type Commit struct {
	Hash      string
	Short     string
	Message   string
	Author    string
	CreatedAt time.Time
}

type Options struct {
	Dir   string
	Store *store.Store
	// Keys defaults to store.SnapshotKeys.
	Keys []string
	Sink Sink
	Now  func() time.Time
	Log  logrus.FieldLogger
}

// Service writes one file per storage key into a local repository and
// commits it.
type Service struct {
	dir   string
	store *store.Store
	keys  []string
	sink  Sink
	now   func() time.Time
	log   logrus.FieldLogger

	mu sync.Mutex
}

func New(opts Options) *Service {
	if len(opts.Keys) == 0 {
		opts.Keys = store.SnapshotKeys
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Service{
		dir:   opts.Dir,
		store: opts.Store,
		keys:  append([]string(nil), opts.Keys...),
		sink:  opts.Sink,
		now:   opts.Now,
		log:   opts.Log.WithField("component", "backup"),
	}
}

// Snapshot commits the current value of every key. With nothing changed it
// returns the HEAD commit, or a zero Commit when there is none yet.
func (s *Service) Snapshot(ctx context.Context, author, message string) (Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.ensureRepo()
	if err != nil {
		return Commit{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}

	bundle := make(map[string]json.RawMessage, len(s.keys))
	for _, key := range s.keys {
		name := key + fileSuffix
		path := filepath.Join(s.dir, name)

		data, ok, err := s.store.Raw(ctx, key)
		if err != nil {
			return Commit{}, err
		}
		if !ok || !json.Valid(data) {
			if _, statErr := os.Stat(path); statErr == nil {
				if _, err := worktree.Remove(name); err != nil {
					return Commit{}, fmt.Errorf("git rm %s: %w", name, err)
				}
			}
			continue
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err != nil {
			return Commit{}, fmt.Errorf("format %s: %w", key, err)
		}
		pretty.WriteByte('\n')
		if err := os.WriteFile(path, pretty.Bytes(), 0o644); err != nil {
			return Commit{}, fmt.Errorf("write %s: %w", name, err)
		}
		if _, err := worktree.Add(name); err != nil {
			return Commit{}, fmt.Errorf("git add %s: %w", name, err)
		}
		bundle[key] = json.RawMessage(data)
	}

	status, err := worktree.Status()
	if err != nil {
		return Commit{}, fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		head, ok, err := headCommit(repo)
		if err != nil || !ok {
			return Commit{}, err
		}
		return head, nil
	}

	if strings.TrimSpace(message) == "" {
		message = "Snapshot " + s.now().Format("2006-01-02 15:04:05")
	}
	if strings.TrimSpace(author) == "" {
		author = "SK CRM"
	}
	hash, err := worktree.Commit(message, s.commitOptions(author))
	if err != nil {
		return Commit{}, fmt.Errorf("commit snapshot: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	commit := toCommit(commitObj)
	s.log.WithFields(logrus.Fields{"commit": commit.Short, "keys": len(bundle)}).Info("snapshot committed")

	if s.sink != nil {
		if err := s.publishBundle(ctx, commit.Hash, bundle); err != nil {
			s.log.WithError(err).WithField("commit", commit.Short).Warn("snapshot upload failed")
		}
	}
	return commit, nil
}

// History lists snapshots, newest first. A limit of zero lists all.
func (s *Service) History(limit int) ([]Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0, limit)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Restore writes every key saved in the given snapshot back into the store
// and deletes the known keys it does not contain. Every file is checked
// before anything is written; an undecodable one fails the whole restore
// with a StorageCorrupt error. The caller must re-initialise repositories.
func (s *Service) Restore(ctx context.Context, hash string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return nil, apperr.NotFound("SNAPSHOT_NOT_FOUND", err.Error())
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return nil, apperr.NotFound("SNAPSHOT_NOT_FOUND", fmt.Sprintf("read commit %s: %v", hash, err))
	}

	known := make(map[string]bool, len(s.keys))
	for _, key := range s.keys {
		known[key] = true
	}
	values, err := readSnapshot(commitObj, known)
	if err != nil {
		return nil, err
	}

	restored := make([]string, 0, len(values))
	for _, key := range s.keys {
		data, ok := values[key]
		if !ok {
			if err := s.store.Delete(ctx, key); err != nil {
				return restored, err
			}
			continue
		}
		if err := s.store.SetRaw(ctx, key, data); err != nil {
			return restored, err
		}
		restored = append(restored, key)
	}
	s.log.WithFields(logrus.Fields{"commit": commitObj.Hash.String()[:7], "keys": len(restored)}).Info("snapshot restored")
	return restored, nil
}

func (s *Service) ensureRepo() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branchName, err)
	}
	return repo, nil
}

func (s *Service) commitOptions(author string) *git.CommitOptions {
	return &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.sk-crm", sanitizeEmail(author)),
			When:  s.now(),
		},
	}
}

func (s *Service) publishBundle(ctx context.Context, hash string, bundle map[string]json.RawMessage) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return s.sink.Put(ctx, SnapshotObjectName(hash), payload, "application/json")
}

func readSnapshot(commitObj *object.Commit, known map[string]bool) (map[string][]byte, error) {
	files, err := commitObj.Files()
	if err != nil {
		return nil, fmt.Errorf("list snapshot files: %w", err)
	}
	defer files.Close()

	values := make(map[string][]byte)
	err = files.ForEach(func(f *object.File) error {
		if !strings.HasSuffix(f.Name, fileSuffix) {
			return nil
		}
		key := strings.TrimSuffix(f.Name, fileSuffix)
		if !known[key] {
			return nil
		}
		content, err := f.Contents()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		data := []byte(content)
		if !json.Valid(data) {
			return apperr.Corrupt("SNAPSHOT_CORRUPT", fmt.Sprintf("%s in snapshot is not valid JSON", f.Name))
		}
		values[key] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func headCommit(repo *git.Repository) (Commit, bool, error) {
	ref, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Commit{}, false, nil
	}
	if err != nil {
		return Commit{}, false, fmt.Errorf("resolve HEAD: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Commit{}, false, fmt.Errorf("read HEAD commit: %w", err)
	}
	return toCommit(commitObj), true, nil
}

func toCommit(commitObj *object.Commit) Commit {
	hash := commitObj.Hash.String()
	return Commit{
		Hash:      hash,
		Short:     hash[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
