package store

import (
	"context"
	"time"

	"github.com/Ritabrata777/CivicLens/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the networked document-store backend. The two multi-document
// writes (issue+event, upvote+counter) run inside driver session transactions,
// so the deployment must be a replica set. Uniqueness constraints live in
// compound indexes, which is what makes concurrent duplicate upvotes fail
// deterministically instead of racing.
type MongoStore struct {
	client     *mongo.Client
	issues     *mongo.Collection
	updates    *mongo.Collection
	upvotes    *mongo.Collection
	blockchain *mongo.Collection
	evidence   *mongo.Collection
	users      *mongo.Collection
}

func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{
		client:     db.Client(),
		issues:     db.Collection("issues"),
		updates:    db.Collection("issue_updates"),
		upvotes:    db.Collection("issue_upvotes"),
		blockchain: db.Collection("blockchain_transactions"),
		evidence:   db.Collection("resolution_evidence"),
		users:      db.Collection("users"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.upvotes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "issue", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.blockchain.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "issue", Value: 1}, {Key: "status", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.updates.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "issue", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) CreateIssue(ctx context.Context, issue *models.Issue, first models.IssueStatusEvent) error {
	return s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.issues.InsertOne(sc, issue); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicateRecord
			}
			return err
		}
		_, err := s.updates.InsertOne(sc, first)
		return err
	})
}

func (s *MongoStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (s *MongoStore) ListIssues(ctx context.Context) ([]models.Issue, error) {
	return s.findIssues(ctx, bson.M{})
}

func (s *MongoStore) ListIssuesByUser(ctx context.Context, userID string) ([]models.Issue, error) {
	return s.findIssues(ctx, bson.M{"submittedBy": userID})
}

func (s *MongoStore) findIssues(ctx context.Context, filter bson.M) ([]models.Issue, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	cursor, err := s.issues.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (s *MongoStore) AppendTransition(ctx context.Context, issueID string, status models.IssueStatus, event models.IssueStatusEvent) error {
	return s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.issues.UpdateOne(sc, bson.M{"_id": issueID}, bson.M{"$set": bson.M{"status": status}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		_, err = s.updates.InsertOne(sc, event)
		return err
	})
}

func (s *MongoStore) EventsForIssue(ctx context.Context, issueID string) ([]models.IssueStatusEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.updates.Find(ctx, bson.M{"issue": issueID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []models.IssueStatusEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *MongoStore) InsertUpvote(ctx context.Context, upvote models.Upvote) error {
	return s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.upvotes.InsertOne(sc, upvote); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrAlreadyUpvoted
			}
			return err
		}
		res, err := s.issues.UpdateOne(sc, bson.M{"_id": upvote.IssueID}, bson.M{"$inc": bson.M{"upvotes": 1}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *MongoStore) InsertBlockchainRecord(ctx context.Context, rec models.BlockchainRecord) error {
	_, err := s.blockchain.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateRecord
	}
	return err
}

func (s *MongoStore) BlockchainRecordsForIssue(ctx context.Context, issueID string) ([]models.BlockchainRecord, error) {
	cursor, err := s.blockchain.Find(ctx, bson.M{"issue": issueID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.BlockchainRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoStore) InsertResolutionEvidence(ctx context.Context, ev models.ResolutionEvidence) error {
	_, err := s.evidence.InsertOne(ctx, ev)
	return err
}

func (s *MongoStore) HasResolutionEvidence(ctx context.Context, issueID string) (bool, error) {
	count, err := s.evidence.CountDocuments(ctx, bson.M{"issue": issueID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateRecord
	}
	return err
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
