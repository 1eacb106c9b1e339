package store

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/habarihub/habari/internal/types"
)

// mongoArticle is the document shape stored in the collection. The
// article ID doubles as the Mongo _id.
type mongoArticle struct {
	ID            string     `bson:"_id"`
	Title         string     `bson:"title"`
	URL           string     `bson:"url"`
	Summary       string     `bson:"summary,omitempty"`
	Content       string     `bson:"content,omitempty"`
	Author        string     `bson:"author,omitempty"`
	ImageURL      string     `bson:"image_url,omitempty"`
	PublishedDate *time.Time `bson:"published_date,omitempty"`
	ScrapedAt     time.Time  `bson:"scraped_at"`
	SourceName    string     `bson:"source_name"`
	SourceURL     string     `bson:"source_url"`
	Region        string     `bson:"region"`
	Categories    []string   `bson:"categories,omitempty"`
}

func (d mongoArticle) article() *types.Article {
	return &types.Article{
		ID:            d.ID,
		Title:         d.Title,
		URL:           d.URL,
		Summary:       d.Summary,
		Content:       d.Content,
		Author:        d.Author,
		ImageURL:      d.ImageURL,
		PublishedDate: d.PublishedDate,
		ScrapedAt:     d.ScrapedAt,
		SourceName:    d.SourceName,
		SourceURL:     d.SourceURL,
		Region:        types.Region(d.Region),
		Categories:    d.Categories,
	}
}

// MongoStore persists articles in a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	logger     *slog.Logger
}

// NewMongoStore connects to MongoDB and prepares the collection and its
// indexes.
func NewMongoStore(uri, database, collection string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "ping", Err: err}
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "region", Value: 1}}},
		{Keys: bson.D{{Key: "source_name", Value: 1}}},
		{Keys: bson.D{{Key: "scraped_at", Value: -1}}},
	})
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "create indexes", Err: err}
	}

	return &MongoStore{
		client:     client,
		collection: coll,
		logger:     logger.With("component", "mongo_store"),
	}, nil
}

func (s *MongoStore) Name() string { return "mongo" }

// Upsert writes articles one at a time so a single bad document cannot
// sink the batch. Identity fields are only written on first insert,
// matching the relational backends.
func (s *MongoStore) Upsert(ctx context.Context, articles []*types.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return count, &types.StoreError{Backend: "mongo", Op: "upsert", Err: err}
		}
		update := bson.M{
			"$set": bson.M{
				"title":          a.Title,
				"summary":        a.Summary,
				"content":        a.Content,
				"author":         a.Author,
				"published_date": a.PublishedDate,
				"scraped_at":     a.ScrapedAt.UTC(),
				"categories":     a.Categories,
				"image_url":      a.ImageURL,
				"updated_at":     now,
			},
			"$setOnInsert": bson.M{
				"url":         a.URL,
				"source_name": a.SourceName,
				"source_url":  a.SourceURL,
				"region":      a.Region.String(),
				"created_at":  now,
			},
		}
		_, err := s.collection.UpdateOne(ctx, bson.M{"_id": a.ID}, update, options.Update().SetUpsert(true))
		if err != nil {
			s.logger.Error("article upsert failed", "id", a.ID, "url", a.URL, "error", err)
			continue
		}
		count++
	}

	s.logger.Debug("articles upserted", "count", count, "of", len(articles))
	return count, nil
}

// List returns stored articles, newest scrape first.
func (s *MongoStore) List(ctx context.Context, f Filter) ([]*types.Article, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "scraped_at", Value: -1}}).
		SetLimit(int64(f.limit())).
		SetSkip(int64(f.Offset))

	cursor, err := s.collection.Find(ctx, mongoFilter(f), opts)
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "list", Err: err}
	}
	defer cursor.Close(ctx)

	var docs []mongoArticle
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "decode", Err: err}
	}
	articles := make([]*types.Article, len(docs))
	for i, d := range docs {
		articles[i] = d.article()
	}
	return articles, nil
}

// Count returns how many stored articles match the filter.
func (s *MongoStore) Count(ctx context.Context, f Filter) (int, error) {
	n, err := s.collection.CountDocuments(ctx, mongoFilter(f))
	if err != nil {
		return 0, &types.StoreError{Backend: "mongo", Op: "count", Err: err}
	}
	return int(n), nil
}

// Sources returns the per-source breakdown, busiest source first.
func (s *MongoStore) Sources(ctx context.Context) ([]SourceCount, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "source_name", Value: "$source_name"},
				{Key: "region", Value: "$region"},
			}},
			{Key: "article_count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "last_scraped", Value: bson.D{{Key: "$max", Value: "$scraped_at"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "article_count", Value: -1}}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "sources", Err: err}
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key struct {
			SourceName string `bson:"source_name"`
			Region     string `bson:"region"`
		} `bson:"_id"`
		ArticleCount int       `bson:"article_count"`
		LastScraped  time.Time `bson:"last_scraped"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "decode", Err: err}
	}

	counts := make([]SourceCount, len(rows))
	for i, r := range rows {
		counts[i] = SourceCount{
			SourceName:   r.Key.SourceName,
			Region:       r.Key.Region,
			ArticleCount: r.ArticleCount,
			LastScraped:  r.LastScraped,
		}
	}
	return counts, nil
}

// Search matches the phrase against title and summary.
func (s *MongoStore) Search(ctx context.Context, query string, limit int) ([]*types.Article, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := regexp.QuoteMeta(query)
	filter := bson.M{"$or": bson.A{
		bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
		bson.M{"summary": bson.M{"$regex": pattern, "$options": "i"}},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "scraped_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "search", Err: err}
	}
	defer cursor.Close(ctx)

	var docs []mongoArticle
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "decode", Err: err}
	}
	articles := make([]*types.Article, len(docs))
	for i, d := range docs {
		articles[i] = d.article()
	}
	return articles, nil
}

// Prune deletes articles whose scrape time is older than the cutoff and
// returns how many went.
func (s *MongoStore) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.collection.DeleteMany(ctx, bson.M{"scraped_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, &types.StoreError{Backend: "mongo", Op: "prune", Err: err}
	}
	n := int(res.DeletedCount)
	s.logger.Info("old articles pruned", "deleted", n, "cutoff", cutoff)
	return n, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mongoFilter(f Filter) bson.M {
	filter := bson.M{}
	if f.Region != "" {
		filter["region"] = strings.ToLower(f.Region)
	}
	if f.Source != "" {
		filter["source_name"] = f.Source
	}
	return filter
}
