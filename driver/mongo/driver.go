// Package mongo provides the MongoDB driver for the argil data layer.
// Conditions compile to filter documents (bson.M); nothing is ever rendered
// as a query string.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/leandroluk/argil/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
)

//region MongoDriver

// MongoDriver implements core.Driver on top of a mongo.Client.
type MongoDriver struct {
	client          *mongo.Client
	defaultDatabase string
}

var _ core.Driver = (*MongoDriver)(nil)

// NewMongoDriver connects to the given URI and verifies connectivity. Schemas
// without an explicit database fall back to defaultDB.
func NewMongoDriver(ctx context.Context, uri string, defaultDB string) (*MongoDriver, error) {
	opts := mopt.Client().ApplyURI(uri)
	opts.SetConnectTimeout(10 * time.Second).SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}
	return &MongoDriver{client: client, defaultDatabase: defaultDB}, nil
}

func (driver *MongoDriver) dbFor(schema *core.Schema) *mongo.Database {
	dbName := driver.defaultDatabase
	if schema.Database != "" {
		dbName = schema.Database
	}
	return driver.client.Database(dbName)
}

func (driver *MongoDriver) coll(schema *core.Schema) *mongo.Collection {
	return driver.dbFor(schema).Collection(schema.Collection)
}

// withSession routes the call through the session carried by the context, if any.
func (driver *MongoDriver) withSession(ctx context.Context) context.Context {
	if tx, ok := core.TransactionFrom(ctx); ok {
		if mt, ok := tx.(*mongoTransaction); ok {
			return mongo.NewSessionContext(ctx, mt.session)
		}
	}
	return ctx
}

// buildFilter compiles a condition tree into a filter document. Field
// presence (OpExists) and nullness (OpNil, nil equality) compile to distinct
// filters here, unlike the SQL backends where both collapse to IS NULL.
func (driver *MongoDriver) buildFilter(condition *core.Condition) bson.M {
	if condition == nil {
		return bson.M{}
	}
	if len(condition.Children) > 0 {
		childFilterList := make([]bson.M, 0, len(condition.Children))
		for _, child := range condition.Children {
			childFilterList = append(childFilterList, driver.buildFilter(child))
		}
		switch *condition.Operator {
		case core.OpAnd:
			return bson.M{"$and": childFilterList}
		case core.OpNot:
			return bson.M{"$nor": childFilterList}
		default:
			return bson.M{}
		}
	}

	fieldName := condition.FieldName
	switch *condition.Operator {
	case core.OpNil:
		return bson.M{fieldName: bson.M{"$eq": nil}}
	case core.OpEq:
		return bson.M{fieldName: condition.Value}
	case core.OpNe:
		return bson.M{fieldName: bson.M{"$ne": condition.Value}}
	case core.OpGt:
		return bson.M{fieldName: bson.M{"$gt": condition.Value}}
	case core.OpGte:
		return bson.M{fieldName: bson.M{"$gte": condition.Value}}
	case core.OpLt:
		return bson.M{fieldName: bson.M{"$lt": condition.Value}}
	case core.OpLte:
		return bson.M{fieldName: bson.M{"$lte": condition.Value}}
	case core.OpLike:
		pattern := toMongoLikePattern(fmt.Sprintf("%v", condition.Value))
		return bson.M{fieldName: primitive.Regex{Pattern: pattern, Options: "i"}}
	case core.OpIn:
		return bson.M{fieldName: bson.M{"$in": toValueArray(condition.Value)}}
	case core.OpNin:
		return bson.M{fieldName: bson.M{"$nin": toValueArray(condition.Value)}}
	case core.OpExists:
		present, _ := condition.Value.(bool)
		return bson.M{fieldName: bson.M{"$exists": present}}
	default:
		return bson.M{}
	}
}

//endregion

//region lifecycle

func (driver *MongoDriver) Connect(ctx context.Context) error {
	return driver.client.Ping(ctx, nil)
}

func (driver *MongoDriver) Ping(ctx context.Context) error {
	return driver.client.Ping(ctx, nil)
}

func (driver *MongoDriver) Close(ctx context.Context) error {
	return driver.client.Disconnect(ctx)
}

func (driver *MongoDriver) IsConnected(ctx context.Context) bool {
	return driver.client.Ping(ctx, nil) == nil
}

func (driver *MongoDriver) Transaction(ctx context.Context) (core.Transaction, error) {
	session, err := driver.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("mongo transaction error: %w", err)
	}
	if err := session.StartTransaction(); err != nil {
		return nil, fmt.Errorf("mongo transaction error: %w", err)
	}
	return &mongoTransaction{session: session}, nil
}

//endregion

//region operations

// Insert persists one document. MongoDB has no RETURNING; the canonical row
// is the inserted document plus the backend-assigned _id when the caller did
// not provide one.
func (driver *MongoDriver) Insert(ctx context.Context, schema *core.Schema, record core.Record) (core.Record, error) {
	ctx = driver.withSession(ctx)
	result, err := driver.coll(schema).InsertOne(ctx, map[string]any(record))
	if err != nil {
		return nil, fmt.Errorf("mongo insert error: %w", err)
	}
	canonical := record.Clone()
	if _, ok := canonical["_id"]; !ok && result.InsertedID != nil {
		canonical["_id"] = result.InsertedID
	}
	return canonical, nil
}

func (driver *MongoDriver) find(ctx context.Context, schema *core.Schema, query *core.Where, single bool) ([]core.Record, error) {
	ctx = driver.withSession(ctx)
	filter := driver.buildFilter(safeCondition(query))
	findOpts := mopt.Find()

	if len(query.Projection) > 0 {
		projection := bson.D{}
		for _, name := range query.Projection {
			projection = append(projection, bson.E{Key: name, Value: 1})
		}
		findOpts.SetProjection(projection)
	}

	if len(query.Sort) > 0 {
		sortDoc := bson.D{}
		for _, sortItem := range query.Sort {
			direction := 1
			if sortItem.Order < 0 {
				direction = -1
			}
			sortDoc = append(sortDoc, bson.E{Key: sortItem.FieldName, Value: direction})
		}
		findOpts.SetSort(sortDoc)
	}

	if single {
		findOpts.SetLimit(1)
	} else {
		if query.Limit > 0 {
			findOpts.SetLimit(int64(query.Limit))
		}
		if query.Offset > 0 {
			findOpts.SetSkip(int64(query.Offset))
		}
	}

	cursor, err := driver.coll(schema).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var resultList []core.Record
	for cursor.Next(ctx) {
		var bsonMap bson.M
		if err := cursor.Decode(&bsonMap); err != nil {
			return nil, err
		}
		resultList = append(resultList, core.Record(bsonMap))
		if single {
			break
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return resultList, nil
}

func (driver *MongoDriver) FindOne(ctx context.Context, schema *core.Schema, query *core.Where) (core.Record, error) {
	resultList, err := driver.find(ctx, schema, query, true)
	if err != nil {
		return nil, fmt.Errorf("mongo find error: %w", err)
	}
	if len(resultList) == 0 {
		return nil, nil
	}
	return resultList[0], nil
}

func (driver *MongoDriver) FindMany(ctx context.Context, schema *core.Schema, query *core.Where) ([]core.Record, error) {
	resultList, err := driver.find(ctx, schema, query, false)
	if err != nil {
		return nil, fmt.Errorf("mongo find error: %w", err)
	}
	return resultList, nil
}

func (driver *MongoDriver) Update(ctx context.Context, schema *core.Schema, condition *core.Condition, changes core.Changes) (int64, error) {
	if len(changes) == 0 {
		return 0, nil
	}
	ctx = driver.withSession(ctx)
	filter := driver.buildFilter(condition)
	update := bson.M{"$set": changes}
	result, err := driver.coll(schema).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("mongo update error: %w", err)
	}
	return result.ModifiedCount, nil
}

func (driver *MongoDriver) Delete(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	ctx = driver.withSession(ctx)
	filter := driver.buildFilter(condition)
	result, err := driver.coll(schema).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongo delete error: %w", err)
	}
	return result.DeletedCount, nil
}

func (driver *MongoDriver) Count(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	ctx = driver.withSession(ctx)
	filter := driver.buildFilter(condition)
	count, err := driver.coll(schema).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongo count error: %w", err)
	}
	return count, nil
}

func (driver *MongoDriver) Exists(ctx context.Context, schema *core.Schema, condition *core.Condition) (bool, error) {
	record, err := driver.FindOne(ctx, schema, &core.Where{Condition: condition, Limit: 1})
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

func (driver *MongoDriver) Increment(ctx context.Context, schema *core.Schema, condition *core.Condition, field string, delta float64) (int64, error) {
	ctx = driver.withSession(ctx)
	filter := driver.buildFilter(condition)
	update := bson.M{"$inc": bson.M{field: delta}}
	result, err := driver.coll(schema).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("mongo increment error: %w", err)
	}
	return result.ModifiedCount, nil
}

// Aggregate runs a native aggregation pipeline, prefixed with a $match stage
// for the compiled condition when non-nil. Stages must be bson documents.
func (driver *MongoDriver) Aggregate(ctx context.Context, schema *core.Schema, condition *core.Condition, pipeline []any) ([]core.Record, error) {
	ctx = driver.withSession(ctx)

	stages := mongo.Pipeline{}
	if condition != nil {
		stages = append(stages, bson.D{{Key: "$match", Value: driver.buildFilter(condition)}})
	}
	fullPipeline := make([]any, 0, len(pipeline)+1)
	for _, stage := range stages {
		fullPipeline = append(fullPipeline, stage)
	}
	fullPipeline = append(fullPipeline, pipeline...)

	cursor, err := driver.coll(schema).Aggregate(ctx, fullPipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo aggregate error: %w", err)
	}
	defer cursor.Close(ctx)

	var resultList []core.Record
	for cursor.Next(ctx) {
		var bsonMap bson.M
		if err := cursor.Decode(&bsonMap); err != nil {
			return nil, fmt.Errorf("mongo aggregate error: %w", err)
		}
		resultList = append(resultList, core.Record(bsonMap))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo aggregate error: %w", err)
	}
	return resultList, nil
}

//endregion

//region indexes

// CreateIndex compiles one index descriptor to an index model. Text indexes
// map to "text" keys, geo indexes to "2dsphere".
func (driver *MongoDriver) CreateIndex(ctx context.Context, schema *core.Schema, index *core.IndexDescriptor, force bool) error {
	ctx = driver.withSession(ctx)
	name := index.ResolvedName(schema.Collection)

	if force {
		// Dropping a missing index is not a failure worth surfacing.
		_, _ = driver.coll(schema).Indexes().DropOne(ctx, name)
	}

	keys := bson.D{}
	for _, key := range index.Keys {
		switch index.Kind {
		case core.IndexText:
			keys = append(keys, bson.E{Key: key.Field, Value: "text"})
		case core.IndexGeo:
			keys = append(keys, bson.E{Key: key.Field, Value: "2dsphere"})
		default:
			keys = append(keys, bson.E{Key: key.Field, Value: core.NormalizeOrder(key.Order)})
		}
	}

	indexOpts := mopt.Index().SetName(name)
	if index.Unique {
		indexOpts.SetUnique(true)
	}
	if index.Sparse {
		indexOpts.SetSparse(true)
	}

	model := mongo.IndexModel{Keys: keys, Options: indexOpts}
	if _, err := driver.coll(schema).Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("mongo index error: %w", err)
	}
	return nil
}

// DropIndexes removes every index of the collection except the mandatory _id index.
func (driver *MongoDriver) DropIndexes(ctx context.Context, schema *core.Schema) error {
	ctx = driver.withSession(ctx)
	if _, err := driver.coll(schema).Indexes().DropAll(ctx); err != nil {
		return fmt.Errorf("mongo index error: %w", err)
	}
	return nil
}

//endregion
