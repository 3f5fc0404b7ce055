// Package history keeps an audit trail of a meeting's notes: every flush
// commits the serialized notes document to a per-meeting git repository, so
// retrospective edits after a meeting completes stay reviewable.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const snapshotFile = "notes.json"

// Snapshot is what gets committed on each flush.
type Snapshot struct {
	StructuredNotes   json.RawMessage `json:"structured_notes"`
	UnstructuredNotes string          `json:"unstructured_notes,omitempty"`
	FreeFormInsights  string          `json:"free_form_insights,omitempty"`
	MeetingSummary    string          `json:"meeting_summary,omitempty"`
	OverallAssessment string          `json:"overall_assessment,omitempty"`
}

// Entry describes one committed snapshot.
type Entry struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Record commits a snapshot for the meeting, initializing the repository on
// first use. The actor becomes the commit author.
func (s *Service) Record(meetingID string, snapshot Snapshot, actor, message string) (Entry, error) {
	lock := s.meetingLock(meetingID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(meetingID)
	if err != nil {
		return Entry{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Entry{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return Entry{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return Entry{}, fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return Entry{}, fmt.Errorf("git add snapshot: %w", err)
	}

	if actor == "" {
		actor = "teamops"
	}
	if message == "" {
		message = "Update meeting notes"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  actor,
			Email: fmt.Sprintf("%s@local.teamops.dev", sanitizeEmail(actor)),
			When:  time.Now(),
		},
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return s.head(repo)
		}
		return Entry{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Entry{}, fmt.Errorf("read commit object: %w", err)
	}
	return toEntry(commitObj), nil
}

// History lists committed snapshots, newest first.
func (s *Service) History(meetingID string, limit int) ([]Entry, error) {
	lock := s.meetingLock(meetingID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(meetingID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}

	headRef, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: headRef.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Entry, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toEntry(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// SnapshotByHash reads the notes document as it was at a given commit.
func (s *Service) SnapshotByHash(meetingID, hash string) (Snapshot, error) {
	lock := s.meetingLock(meetingID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(meetingID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Snapshot{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read commit %s: %w", hash, err)
	}

	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	contents, err := io.ReadAll(reader)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot bytes: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(contents, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *Service) openOrInit(meetingID string) (*git.Repository, error) {
	path := s.repoPath(meetingID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) head(repo *git.Repository) (Entry, error) {
	headRef, err := repo.Head()
	if err != nil {
		return Entry{}, fmt.Errorf("resolve head: %w", err)
	}
	commitObj, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return Entry{}, fmt.Errorf("read head commit: %w", err)
	}
	return toEntry(commitObj), nil
}

func (s *Service) repoPath(meetingID string) string {
	return filepath.Join(s.baseDir, meetingID)
}

func (s *Service) meetingLock(meetingID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[meetingID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[meetingID] = lock
	return lock
}

func toEntry(commitObj *object.Commit) Entry {
	return Entry{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
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
