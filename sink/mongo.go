package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo keeps each destination in its own collection, one document per row.
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
}

type mongoRow struct {
	Ordinal int64    `bson:"ordinal"`
	Cells   []string `bson:"cells"`
}

// OpenMongo connects to uri and pings the server.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}
	return &Mongo{client: client, database: client.Database(database)}, nil
}

func (m *Mongo) Ensure(ctx context.Context, name string) error {
	names, err := m.database.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return nil
	}
	if err := m.database.CreateCollection(ctx, name); err != nil {
		return err
	}
	_, err = m.database.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ordinal", Value: 1}},
	})
	return err
}

func (m *Mongo) Clear(ctx context.Context, name string) error {
	_, err := m.database.Collection(name).DeleteMany(ctx, bson.M{})
	return err
}

func (m *Mongo) Append(ctx context.Context, name string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	coll := m.database.Collection(name)
	next, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	docs := make([]interface{}, len(rows))
	for i, row := range rows {
		docs[i] = mongoRow{Ordinal: next + int64(i), Cells: row}
	}
	_, err = coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

func (m *Mongo) Rows(ctx context.Context, name string) ([][]string, error) {
	cursor, err := m.database.Collection(name).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "ordinal", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out [][]string
	for cursor.Next(ctx) {
		var row mongoRow
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.Cells)
	}
	return out, cursor.Err()
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
