package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/blobcache/blobstore"
	"github.com/hupe1980/blobcache/codec"
)

const (
	attrCollection = "collection"
	attrKey        = "key"
	attrValue      = "value"

	// schemaPartition holds one marker item per collection plus the store marker.
	schemaPartition = "__schema__"
	storeMarkerKey  = "__store__"

	defaultTableWait = 2 * time.Minute
)

// Engine implements blobstore.Engine backed by DynamoDB, one table per store.
//
// Table schema:
//   - Partition key: collection (string)
//   - Sort key: key (string)
//   - value (binary): the blobstore record
//
// Tables are created on first open with PAY_PER_REQUEST billing. Items are
// subject to the DynamoDB item size limit (400KB including the record header).
type Engine struct {
	client      Client
	tablePrefix string
	codec       codec.Codec
	tableWait   time.Duration
	region      string
}

// Client is the interface for DynamoDB operations.
type Client interface {
	dynamodb.DescribeTableAPIClient
	dynamodb.QueryAPIClient
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTablePrefix sets the prefix of every table name (e.g. "blobcache-").
func WithTablePrefix(prefix string) Option {
	return func(e *Engine) {
		e.tablePrefix = prefix
	}
}

// WithCodec sets the codec used for newly written values.
func WithCodec(c codec.Codec) Option {
	return func(e *Engine) {
		if c == nil {
			c = codec.Default
		}
		e.codec = c
	}
}

// WithTableWait bounds how long Open waits for a created table to become active.
func WithTableWait(d time.Duration) Option {
	return func(e *Engine) {
		e.tableWait = d
	}
}

// WithRegion sets the AWS region used by New. Ignored by NewEngine.
func WithRegion(region string) Option {
	return func(e *Engine) {
		e.region = region
	}
}

// NewEngine creates a new DynamoDB engine on top of an existing client.
func NewEngine(client Client, opts ...Option) *Engine {
	e := &Engine{
		client:    client,
		codec:     codec.Default,
		tableWait: defaultTableWait,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// New creates a DynamoDB engine using the default AWS credential chain.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	probe := &Engine{}
	for _, opt := range opts {
		opt(probe)
	}

	var loadOpts []func(*config.LoadOptions) error
	if probe.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(probe.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewEngine(dynamodb.NewFromConfig(cfg), opts...), nil
}

// Probe implements blobstore.Prober by listing at most one table.
func (e *Engine) Probe(ctx context.Context) error {
	_, err := e.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}

// Open opens the named store, creating its table and running upgrade when the
// store marker item is absent.
func (e *Engine) Open(ctx context.Context, name string, upgrade blobstore.UpgradeFunc) (blobstore.Handle, error) {
	if name == "" {
		return nil, errors.New("store name is empty")
	}
	h := &handle{
		engine:      e,
		table:       e.tablePrefix + name,
		collections: make(map[string]bool),
	}

	if err := e.ensureTable(ctx, h.table); err != nil {
		return nil, err
	}

	created, err := h.exists(ctx, schemaPartition, storeMarkerKey)
	if err != nil {
		return nil, err
	}
	if !created {
		if upgrade != nil {
			if err := upgrade(ctx, h); err != nil {
				return nil, fmt.Errorf("upgrade %s: %w", name, err)
			}
		}
		if err := h.putMarker(ctx, storeMarkerKey); err != nil {
			return nil, err
		}
	}

	if err := h.loadCollections(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func (e *Engine) ensureTable(ctx context.Context, table string) error {
	_, err := e.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return fmt.Errorf("describe table %s: %w", table, err)
	}

	_, err = e.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrCollection), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrCollection), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrKey), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		// Another process is creating the same table.
	}

	waiter := dynamodb.NewTableExistsWaiter(e.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, e.tableWait); err != nil {
		return fmt.Errorf("wait for table %s: %w", table, err)
	}
	return nil
}

type handle struct {
	engine *Engine
	table  string

	mu          sync.RWMutex
	collections map[string]bool
	closed      bool
}

func itemKey(collection, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrCollection: &types.AttributeValueMemberS{Value: collection},
		attrKey:        &types.AttributeValueMemberS{Value: key},
	}
}

func (h *handle) exists(ctx context.Context, collection, key string) (bool, error) {
	resp, err := h.engine.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(h.table),
		Key:            itemKey(collection, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	return len(resp.Item) > 0, nil
}

// putMarker writes a schema marker. A marker that already exists is kept.
func (h *handle) putMarker(ctx context.Context, key string) error {
	_, err := h.engine.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(h.table),
		Item:                itemKey(schemaPartition, key),
		ConditionExpression: aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{
			"#k": attrKey,
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil
		}
		return err
	}
	return nil
}

func (h *handle) loadCollections(ctx context.Context) error {
	paginator := dynamodb.NewQueryPaginator(h.engine.client, &dynamodb.QueryInput{
		TableName:              aws.String(h.table),
		KeyConditionExpression: aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{
			"#c": attrCollection,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: schemaPartition},
		},
		ConsistentRead: aws.Bool(true),
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("query collections: %w", err)
		}
		for _, item := range page.Items {
			k, ok := item[attrKey].(*types.AttributeValueMemberS)
			if !ok {
				return errors.New("invalid key attribute in DynamoDB")
			}
			if k.Value != storeMarkerKey {
				h.collections[k.Value] = true
			}
		}
	}
	return nil
}

// CreateCollection implements blobstore.Schema.
func (h *handle) CreateCollection(ctx context.Context, name string) error {
	if name == "" || name == schemaPartition {
		return fmt.Errorf("invalid collection name %q", name)
	}
	if err := h.putMarker(ctx, name); err != nil {
		return err
	}
	h.mu.Lock()
	h.collections[name] = true
	h.mu.Unlock()
	return nil
}

func (h *handle) check(collection string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return blobstore.ErrHandleClosed
	}
	if !h.collections[collection] {
		return fmt.Errorf("%w: %s", blobstore.ErrNoCollection, collection)
	}
	return nil
}

func (h *handle) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := h.check(collection); err != nil {
		return err
	}
	record, err := blobstore.EncodeRecord(h.engine.codec, value)
	if err != nil {
		return err
	}
	item := itemKey(collection, key)
	item[attrValue] = &types.AttributeValueMemberB{Value: record}

	_, err = h.engine.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(h.table),
		Item:      item,
	})
	return err
}

func (h *handle) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := h.check(collection); err != nil {
		return nil, err
	}
	resp, err := h.engine.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(h.table),
		Key:            itemKey(collection, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Item) == 0 {
		return nil, blobstore.ErrNotFound
	}
	v, ok := resp.Item[attrValue].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("%w: missing value attribute", blobstore.ErrCorrupt)
	}
	return blobstore.DecodeRecord(v.Value)
}

func (h *handle) Delete(ctx context.Context, collection, key string) error {
	if err := h.check(collection); err != nil {
		return err
	}
	_, err := h.engine.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(h.table),
		Key:       itemKey(collection, key),
	})
	return err
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
