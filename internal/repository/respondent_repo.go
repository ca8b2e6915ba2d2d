package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"surveychat/internal/model"
)

// RespondentRepo stores respondents, unique by lower-cased email
type RespondentRepo interface {
	Upsert(ctx context.Context, info model.RespondentInfo) (*model.Respondent, error)
	GetByID(ctx context.Context, id string) (*model.Respondent, error)
	GetByEmail(ctx context.Context, email string) (*model.Respondent, error)
	GetMany(ctx context.Context, ids []string) (map[string]*model.Respondent, error)
}

type respondentRepo struct {
	collection *mongo.Collection
}

func NewRespondentRepo(db *mongo.Database) RespondentRepo {
	return &respondentRepo{
		collection: db.Collection(CollectionRespondents),
	}
}

// NormalizeEmail is the lookup form of an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Upsert creates the respondent on first sight and refreshes name and phone
// on later submissions.
func (r *respondentRepo) Upsert(ctx context.Context, info model.RespondentInfo) (*model.Respondent, error) {
	now := time.Now().UTC()
	email := NormalizeEmail(info.Email)
	update := bson.M{
		"$set": bson.M{
			"fullName":  strings.TrimSpace(info.FullName),
			"phone":     strings.TrimSpace(info.Phone),
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"_id":       uuid.NewString(),
			"email":     email,
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var respondent model.Respondent
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&respondent); err != nil {
		return nil, err
	}
	return &respondent, nil
}

func (r *respondentRepo) GetByID(ctx context.Context, id string) (*model.Respondent, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *respondentRepo) GetByEmail(ctx context.Context, email string) (*model.Respondent, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (r *respondentRepo) GetMany(ctx context.Context, ids []string) (map[string]*model.Respondent, error) {
	out := make(map[string]*model.Respondent, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var respondents []*model.Respondent
	if err := cursor.All(ctx, &respondents); err != nil {
		return nil, err
	}
	for _, resp := range respondents {
		out[resp.ID] = resp
	}
	return out, nil
}

func (r *respondentRepo) findOne(ctx context.Context, filter bson.M) (*model.Respondent, error) {
	var respondent model.Respondent
	err := r.collection.FindOne(ctx, filter).Decode(&respondent)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &respondent, nil
}
