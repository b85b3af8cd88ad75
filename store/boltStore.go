package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/Ritabrata777/CivicLens/models"

	bolt "go.etcd.io/bbolt"
)

var (
	bktIssues     = []byte("issues")
	bktEvents     = []byte("issue_updates")
	bktUpvotes    = []byte("issue_upvotes")
	bktBlockchain = []byte("blockchain_transactions")
	bktEvidence   = []byte("resolution_evidence")
	bktUsers      = []byte("users")
	bktUserEmails = []byte("user_emails")
)

// BoltStore is the embedded single-writer backend. Each mutating method runs
// in one bbolt read-write transaction, so multi-bucket writes are atomic and
// uniqueness checks (upvote pair, blockchain record pair, email) cannot race:
// bbolt serializes writers.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bktIssues, bktEvents, bktUpvotes, bktBlockchain, bktEvidence, bktUsers, bktUserEmails} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func pairKey(a, b string) []byte {
	return []byte(a + "\x00" + b)
}

func appendEvent(tx *bolt.Tx, event models.IssueStatusEvent) error {
	parent := tx.Bucket(bktEvents)
	bkt, err := parent.CreateBucketIfNotExists([]byte(event.IssueID))
	if err != nil {
		return err
	}
	seq, err := bkt.NextSequence()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return bkt.Put(itob(seq), raw)
}

func (s *BoltStore) CreateIssue(ctx context.Context, issue *models.Issue, first models.IssueStatusEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bktIssues)
		if bkt.Get([]byte(issue.ID)) != nil {
			return ErrDuplicateRecord
		}
		raw, err := json.Marshal(issue)
		if err != nil {
			return err
		}
		if err := bkt.Put([]byte(issue.ID), raw); err != nil {
			return err
		}
		return appendEvent(tx, first)
	})
}

func (s *BoltStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bktIssues).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &issue)
	})
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (s *BoltStore) ListIssues(ctx context.Context) ([]models.Issue, error) {
	return s.filterIssues(func(models.Issue) bool { return true })
}

func (s *BoltStore) ListIssuesByUser(ctx context.Context, userID string) ([]models.Issue, error) {
	return s.filterIssues(func(i models.Issue) bool { return i.SubmittedBy == userID })
}

func (s *BoltStore) filterIssues(keep func(models.Issue) bool) ([]models.Issue, error) {
	issues := []models.Issue{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bktIssues).ForEach(func(_, raw []byte) error {
			var issue models.Issue
			if err := json.Unmarshal(raw, &issue); err != nil {
				return err
			}
			if keep(issue) {
				issues = append(issues, issue)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(issues, func(i, j int) bool {
		return issues[i].SubmittedAt.After(issues[j].SubmittedAt)
	})
	return issues, nil
}

func (s *BoltStore) AppendTransition(ctx context.Context, issueID string, status models.IssueStatus, event models.IssueStatusEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bktIssues)
		raw := bkt.Get([]byte(issueID))
		if raw == nil {
			return ErrNotFound
		}
		var issue models.Issue
		if err := json.Unmarshal(raw, &issue); err != nil {
			return err
		}
		issue.Status = status
		updated, err := json.Marshal(&issue)
		if err != nil {
			return err
		}
		if err := bkt.Put([]byte(issueID), updated); err != nil {
			return err
		}
		return appendEvent(tx, event)
	})
}

func (s *BoltStore) EventsForIssue(ctx context.Context, issueID string) ([]models.IssueStatusEvent, error) {
	events := []models.IssueStatusEvent{}
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bktEvents).Bucket([]byte(issueID))
		if bkt == nil {
			return nil
		}
		// Sequence keys are big-endian, so cursor order is insertion order.
		return bkt.ForEach(func(_, raw []byte) error {
			var event models.IssueStatusEvent
			if err := json.Unmarshal(raw, &event); err != nil {
				return err
			}
			events = append(events, event)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *BoltStore) InsertUpvote(ctx context.Context, upvote models.Upvote) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := pairKey(upvote.IssueID, upvote.UserID)
		votes := tx.Bucket(bktUpvotes)
		if votes.Get(key) != nil {
			return ErrAlreadyUpvoted
		}
		issues := tx.Bucket(bktIssues)
		raw := issues.Get([]byte(upvote.IssueID))
		if raw == nil {
			return ErrNotFound
		}
		voteRaw, err := json.Marshal(upvote)
		if err != nil {
			return err
		}
		if err := votes.Put(key, voteRaw); err != nil {
			return err
		}
		var issue models.Issue
		if err := json.Unmarshal(raw, &issue); err != nil {
			return err
		}
		issue.Upvotes++
		updated, err := json.Marshal(&issue)
		if err != nil {
			return err
		}
		return issues.Put([]byte(upvote.IssueID), updated)
	})
}

func (s *BoltStore) InsertBlockchainRecord(ctx context.Context, rec models.BlockchainRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := pairKey(rec.IssueID, string(rec.Status))
		bkt := tx.Bucket(bktBlockchain)
		if bkt.Get(key) != nil {
			return ErrDuplicateRecord
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return bkt.Put(key, raw)
	})
}

func (s *BoltStore) BlockchainRecordsForIssue(ctx context.Context, issueID string) ([]models.BlockchainRecord, error) {
	records := []models.BlockchainRecord{}
	prefix := []byte(issueID + "\x00")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bktBlockchain).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec models.BlockchainRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *BoltStore) InsertResolutionEvidence(ctx context.Context, ev models.ResolutionEvidence) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.Bucket(bktEvidence).CreateBucketIfNotExists([]byte(ev.IssueID))
		if err != nil {
			return err
		}
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		raw, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return bkt.Put(itob(seq), raw)
	})
}

func (s *BoltStore) HasResolutionEvidence(ctx context.Context, issueID string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bktEvidence).Bucket([]byte(issueID))
		if bkt == nil {
			return nil
		}
		k, _ := bkt.Cursor().First()
		found = k != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		emails := tx.Bucket(bktUserEmails)
		if emails.Get([]byte(user.Email)) != nil {
			return ErrDuplicateRecord
		}
		raw, err := json.Marshal(user)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bktUsers).Put([]byte(user.ID), raw); err != nil {
			return err
		}
		return emails.Put([]byte(user.Email), []byte(user.ID))
	})
}

func (s *BoltStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bktUsers).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *BoltStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bktUserEmails).Get([]byte(email))
		if raw == nil {
			return ErrNotFound
		}
		id = string(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

func (s *BoltStore) Close(ctx context.Context) error {
	return s.db.Close()
}
