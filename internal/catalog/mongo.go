package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// CollectionName holds one document per user.
	CollectionName = "files"

	connectTimeout = 10 * time.Second
)

// MongoStore reads and updates user catalogs in MongoDB.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(CollectionName),
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// FindUser loads the user's projects and clips. Rendered outputs are
// projected away: the pipeline only appends to them, and older documents
// store them in shapes this package does not decode.
func (s *MongoStore) FindUser(ctx context.Context, userID string) (*UserCatalog, error) {
	var doc UserCatalog
	err := s.coll.FindOne(ctx, userFilter(userID), findUserOptions()).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user catalog: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) AppendRenderedOutput(ctx context.Context, userID, projectID string, out RenderedOutput) error {
	res, err := s.coll.UpdateOne(ctx, projectFilter(userID, projectID), appendUpdate(out))
	if err != nil {
		return fmt.Errorf("push rendered output: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// ListRenderedOutputs reads only the render history of each project. Entries
// that do not decode as a RenderedOutput are kept with their identifying
// fields so their objects can still be signed.
func (s *MongoStore) ListRenderedOutputs(ctx context.Context, userID string) ([]RenderedFile, error) {
	var doc renderHistoryDoc
	err := s.coll.FindOne(ctx, userFilter(userID), renderHistoryOptions()).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find render history: %w", err)
	}
	return doc.files(), nil
}

type renderHistoryDoc struct {
	Projects []struct {
		ProjectID    string     `bson:"projectId"`
		ProjectTitle string     `bson:"projectTitle"`
		RenderFile   []bson.Raw `bson:"renderFile"`
	} `bson:"userMeta"`
}

func (d renderHistoryDoc) files() []RenderedFile {
	files := make([]RenderedFile, 0)
	for _, p := range d.Projects {
		for _, raw := range p.RenderFile {
			var out RenderedOutput
			if err := bson.Unmarshal(raw, &out); err != nil {
				out = RenderedOutput{
					Key:       rawString(raw, "key"),
					FileName:  rawString(raw, "fileName"),
					URL:       rawString(raw, "url"),
					ProjectID: rawString(raw, "projectId"),
					FileID:    rawString(raw, "fileId"),
				}
			}
			if out.Key == "" {
				continue
			}
			if out.ProjectID == "" {
				out.ProjectID = p.ProjectID
			}
			files = append(files, RenderedFile{RenderedOutput: out, ProjectTitle: p.ProjectTitle})
		}
	}
	return files
}

func rawString(raw bson.Raw, key string) string {
	v, err := raw.LookupErr(key)
	if err != nil {
		return ""
	}
	s, _ := v.StringValueOK()
	return s
}

func renderHistoryOptions() *options.FindOneOptions {
	return options.FindOne().SetProjection(bson.D{
		{Key: "_id", Value: 0},
		{Key: "userMeta.projectId", Value: 1},
		{Key: "userMeta.projectTitle", Value: 1},
		{Key: "userMeta.renderFile", Value: 1},
	})
}

func userFilter(userID string) bson.D {
	return bson.D{{Key: "userId", Value: userID}}
}

func findUserOptions() *options.FindOneOptions {
	return options.FindOne().SetProjection(bson.D{{Key: "userMeta.renderFile", Value: 0}})
}

func projectFilter(userID, projectID string) bson.D {
	return bson.D{
		{Key: "userId", Value: userID},
		{Key: "userMeta.projectId", Value: projectID},
	}
}

// appendUpdate pushes onto the matched array element only ($ positional).
func appendUpdate(out RenderedOutput) bson.D {
	return bson.D{{Key: "$push", Value: bson.D{{Key: "userMeta.$.renderFile", Value: out}}}}
}
