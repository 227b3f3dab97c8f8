package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	si "github.com/annel0/map-editor/internal/storage_interface"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig содержит настройки подключения к MongoDB
type MongoConfig struct {
	URI        string // например mongodb://localhost:27017
	Database   string // например mapeditor
	Collection string // например revisions
	Counters   string // например counters (для seq)
	Compress   bool
}

// MongoArchive хранит ревизии карт документами MongoDB
type MongoArchive struct {
	client      *mongo.Client
	collection  *mongo.Collection
	counterColl *mongo.Collection
	codec       *blobCodec
	ctxTimeout  time.Duration
}

// revisionDoc документ ревизии; содержимое хранится в поле data
type revisionDoc struct {
	si.Revision `bson:",inline"`
	Data        []byte `bson:"data,omitempty"`
}

// NewMongoArchive подключается к MongoDB и создаёт индексы
func NewMongoArchive(ctx context.Context, cfg MongoConfig) (*MongoArchive, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "mapeditor"
	}
	if cfg.Collection == "" {
		cfg.Collection = "revisions"
	}
	if cfg.Counters == "" {
		cfg.Counters = "counters"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("не удалось проверить соединение с MongoDB: %w", err)
	}

	codec, err := newBlobCodec(cfg.Compress)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(cfg.Database)
	a := &MongoArchive{
		client:      client,
		collection:  db.Collection(cfg.Collection),
		counterColl: db.Collection(cfg.Counters),
		codec:       codec,
		ctxTimeout:  5 * time.Second,
	}
	if err := a.ensureIndexes(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *MongoArchive) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.ctxTimeout)
	defer cancel()
	nameSeq := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}, {Key: "seq", Value: -1}},
		Options: options.Index().SetName("name_seq"),
	}
	_, err := a.collection.Indexes().CreateOne(ctx, nameSeq)
	return err
}

// nextSequence атомарно увеличивает счётчик ревизий
func (a *MongoArchive) nextSequence(ctx context.Context) (uint64, error) {
	res := a.counterColl.FindOneAndUpdate(ctx,
		bson.M{"_id": "revision"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return uint64(doc.Seq), nil
}

func (a *MongoArchive) Put(ctx context.Context, name string, data []byte, meta map[string]string) (si.Revision, error) {
	if err := validName(name); err != nil {
		return si.Revision{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.ctxTimeout)
	defer cancel()

	seq, err := a.nextSequence(ctx)
	if err != nil {
		return si.Revision{}, fmt.Errorf("счётчик ревизий: %w", err)
	}

	rev, stored := a.codec.pack(name, data, meta)
	rev.Seq = seq
	if _, err := a.collection.InsertOne(ctx, revisionDoc{Revision: rev, Data: stored}); err != nil {
		return si.Revision{}, fmt.Errorf("ошибка сохранения ревизии %q: %w", name, err)
	}
	return rev, nil
}

func (a *MongoArchive) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (si.Revision, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.ctxTimeout)
	defer cancel()

	var doc revisionDoc
	err := a.collection.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return si.Revision{}, nil, si.ErrNotFound
	}
	if err != nil {
		return si.Revision{}, nil, fmt.Errorf("ошибка загрузки ревизии: %w", err)
	}

	data, err := a.codec.unpack(doc.Revision, doc.Data)
	if err != nil {
		return si.Revision{}, nil, err
	}
	return doc.Revision, data, nil
}

func (a *MongoArchive) Get(ctx context.Context, id string) (si.Revision, []byte, error) {
	return a.findOne(ctx, bson.M{"_id": id})
}

func (a *MongoArchive) Latest(ctx context.Context, name string) (si.Revision, []byte, error) {
	return a.findOne(ctx, bson.M{"name": name}, options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}}))
}

func (a *MongoArchive) List(ctx context.Context, name string) ([]si.Revision, error) {
	ctx, cancel := context.WithTimeout(ctx, a.ctxTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetProjection(bson.M{"data": 0})
	cur, err := a.collection.Find(ctx, bson.M{"name": name}, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса ревизий %q: %w", name, err)
	}
	defer cur.Close(ctx)

	var out []si.Revision
	for cur.Next(ctx) {
		var doc revisionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("ошибка чтения ревизии: %w", err)
		}
		out = append(out, doc.Revision)
	}
	return out, cur.Err()
}

func (a *MongoArchive) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, a.ctxTimeout)
	defer cancel()

	res, err := a.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("ошибка удаления ревизии %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return si.ErrNotFound
	}
	return nil
}

// Close завершает соединение
func (a *MongoArchive) Close() error {
	a.codec.close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}
