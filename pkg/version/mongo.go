package version

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/revgraph/pkg/cache"
)

// MongoStore keeps one document per head: {version_num, seq}.
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	backoff cache.Backoff
}

// mongoTarget splits a store URL into the driver URI, database and
// collection.
func mongoTarget(u *url.URL) (uri, db, coll string) {
	q := u.Query()
	coll = q.Get("collection")
	if coll == "" {
		coll = DefaultTable
	}
	q.Del("collection")
	db = strings.TrimPrefix(u.Path, "/")
	if db == "" {
		db = "revgraph"
	}
	clean := *u
	clean.RawQuery = q.Encode()
	return clean.String(), db, coll
}

func openMongo(ctx context.Context, u *url.URL, b cache.Backoff) (*MongoStore, error) {
	uri, db, coll := mongoTarget(u)
	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	s := &MongoStore{client: client, coll: client.Database(db).Collection(coll), backoff: b}
	if err := b.Retry(ctx, func() error { return mongoTransient(client.Ping(ctx, nil)) }); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func mongoTransient(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return cache.Retryable(err)
	}
	return err
}

func (s *MongoStore) Heads(ctx context.Context) ([]string, error) {
	var raw []any
	err := s.backoff.Retry(ctx, func() error {
		raw = raw[:0]
		cur, err := s.coll.Find(ctx, bson.M{}, mongooptions.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
		if err != nil {
			return mongoTransient(err)
		}
		defer cur.Close(ctx)
		for cur.Next(ctx) {
			var doc bson.M
			if err := cur.Decode(&doc); err != nil {
				return err
			}
			raw = append(raw, doc["version_num"])
		}
		return mongoTransient(cur.Err())
	})
	if err != nil {
		return nil, err
	}
	return coerce(raw)
}

func (s *MongoStore) Insert(ctx context.Context, id string) error {
	return s.backoff.Retry(ctx, func() error {
		n, err := s.coll.CountDocuments(ctx, bson.M{"version_num": id})
		if err != nil {
			return mongoTransient(err)
		}
		if n > 0 {
			return duplicateError(id)
		}
		seq, err := s.nextSeq(ctx)
		if err != nil {
			return mongoTransient(err)
		}
		_, err = s.coll.InsertOne(ctx, bson.M{"version_num": id, "seq": seq})
		return mongoTransient(err)
	})
}

func (s *MongoStore) nextSeq(ctx context.Context) (int64, error) {
	var top struct {
		Seq int64 `bson:"seq"`
	}
	err := s.coll.FindOne(ctx, bson.M{}, mongooptions.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&top)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return top.Seq + 1, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	var n int64
	err := s.backoff.Retry(ctx, func() error {
		res, err := s.coll.DeleteOne(ctx, bson.M{"version_num": id})
		if err != nil {
			return mongoTransient(err)
		}
		n = res.DeletedCount
		return nil
	})
	if err != nil {
		return err
	}
	if n != 1 {
		return rowCountError("deleting", id, n)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, from, to string) error {
	if from != to {
		n, err := s.coll.CountDocuments(ctx, bson.M{"version_num": to})
		if err != nil {
			return err
		}
		if n > 0 {
			return duplicateError(to)
		}
	}
	var matched int64
	err := s.backoff.Retry(ctx, func() error {
		res, err := s.coll.UpdateOne(ctx, bson.M{"version_num": from}, bson.M{"$set": bson.M{"version_num": to}})
		if err != nil {
			return mongoTransient(err)
		}
		matched = res.MatchedCount
		return nil
	})
	if err != nil {
		return err
	}
	if matched != 1 {
		return rowCountError("updating", from, matched)
	}
	return nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
