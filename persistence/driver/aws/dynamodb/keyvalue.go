package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dogmatiq/topology/persistence/driver/aws/internal/awsx"
	"github.com/dogmatiq/topology/persistence/kv"
)

// KeyValueStore is an implementation of [kv.Store] that persists keyspaces in a
// DynamoDB table.
type KeyValueStore struct {
	// Client is the DynamoDB client to use.
	Client *dynamodb.Client

	// Table is the table name used for storage of key/value pairs.
	Table string

	// DecorateGetItem is an optional function that is called before each
	// DynamoDB "GetItem" request.
	//
	// It may modify the API input in-place. It returns options that will be
	// applied to the request.
	DecorateGetItem func(*dynamodb.GetItemInput) []func(*dynamodb.Options)

	// DecorateQuery is an optional function that is called before each DynamoDB
	// "Query" request.
	DecorateQuery func(*dynamodb.QueryInput) []func(*dynamodb.Options)

	// DecoratePutItem is an optional function that is called before each
	// DynamoDB "PutItem" request.
	DecoratePutItem func(*dynamodb.PutItemInput) []func(*dynamodb.Options)

	// DecorateDeleteItem is an optional function that is called before each
	// DynamoDB "DeleteItem" request.
	DecorateDeleteItem func(*dynamodb.DeleteItemInput) []func(*dynamodb.Options)
}

const (
	kvKeyspaceAttr = "Keyspace"
	kvKeyAttr      = "Key"
	kvValueAttr    = "Value"
)

// Open returns the keyspace with the given name.
func (s *KeyValueStore) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	return &keyspace{
		store: s,
		name:  &types.AttributeValueMemberS{Value: name},
	}, ctx.Err()
}

type keyspace struct {
	store *KeyValueStore
	name  *types.AttributeValueMemberS
}

func (ks *keyspace) itemKey(k []byte) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		kvKeyspaceAttr: ks.name,
		kvKeyAttr:      &types.AttributeValueMemberB{Value: k},
	}
}

func (ks *keyspace) Get(ctx context.Context, k []byte) ([]byte, error) {
	out, err := awsx.Do(
		ctx,
		ks.store.Client.GetItem,
		ks.store.DecorateGetItem,
		&dynamodb.GetItemInput{
			TableName:            aws.String(ks.store.Table),
			Key:                  ks.itemKey(k),
			ProjectionExpression: aws.String(`#V`),
			ExpressionAttributeNames: map[string]string{
				"#V": kvValueAttr,
			},
		},
	)
	if err != nil || out.Item == nil {
		return nil, err
	}

	v, err := getAttr[*types.AttributeValueMemberB](out.Item, kvValueAttr)
	if err != nil {
		return nil, err
	}

	return v.Value, nil
}

func (ks *keyspace) Has(ctx context.Context, k []byte) (bool, error) {
	out, err := awsx.Do(
		ctx,
		ks.store.Client.GetItem,
		ks.store.DecorateGetItem,
		&dynamodb.GetItemInput{
			TableName: aws.String(ks.store.Table),
			Key:       ks.itemKey(k),
			// Request an unknown attribute to avoid fetching unnecessary data.
			ProjectionExpression: aws.String(`NonExistent`),
		},
	)
	if err != nil {
		return false, err
	}

	return out.Item != nil, nil
}

func (ks *keyspace) Set(ctx context.Context, k, v []byte) error {
	if len(v) == 0 {
		_, err := awsx.Do(
			ctx,
			ks.store.Client.DeleteItem,
			ks.store.DecorateDeleteItem,
			&dynamodb.DeleteItemInput{
				TableName: aws.String(ks.store.Table),
				Key:       ks.itemKey(k),
			},
		)
		return err
	}

	item := ks.itemKey(k)
	item[kvValueAttr] = &types.AttributeValueMemberB{Value: v}

	_, err := awsx.Do(
		ctx,
		ks.store.Client.PutItem,
		ks.store.DecoratePutItem,
		&dynamodb.PutItemInput{
			TableName: aws.String(ks.store.Table),
			Item:      item,
		},
	)

	return err
}

func (ks *keyspace) Range(
	ctx context.Context,
	fn kv.RangeFunc,
) error {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(ks.store.Table),
		KeyConditionExpression: aws.String(`#S = :S`),
		ProjectionExpression:   aws.String("#K, #V"),
		ExpressionAttributeNames: map[string]string{
			"#S": kvKeyspaceAttr,
			"#K": kvKeyAttr,
			"#V": kvValueAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":S": ks.name,
		},
	}

	for {
		out, err := awsx.Do(
			ctx,
			ks.store.Client.Query,
			ks.store.DecorateQuery,
			in,
		)
		if err != nil {
			return err
		}

		for _, item := range out.Items {
			key, err := getAttr[*types.AttributeValueMemberB](item, kvKeyAttr)
			if err != nil {
				return err
			}

			value, err := getAttr[*types.AttributeValueMemberB](item, kvValueAttr)
			if err != nil {
				return err
			}

			ok, err := fn(ctx, key.Value, value.Value)
			if !ok || err != nil {
				return err
			}
		}

		if out.LastEvaluatedKey == nil {
			return nil
		}

		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (ks *keyspace) Close() error {
	return nil
}

// CreateKeyValueStoreTable creates a DynamoDB table for use with
// [KeyValueStore].
//
// It does nothing if the table already exists.
func CreateKeyValueStoreTable(
	ctx context.Context,
	client *dynamodb.Client,
	table string,
	decorators ...func(*dynamodb.CreateTableInput) []func(*dynamodb.Options),
) error {
	_, err := awsx.Do(
		ctx,
		client.CreateTable,
		func(in *dynamodb.CreateTableInput) []func(*dynamodb.Options) {
			var options []func(*dynamodb.Options)
			for _, dec := range decorators {
				options = append(options, dec(in)...)
			}

			return options
		},
		&dynamodb.CreateTableInput{
			TableName: aws.String(table),
			AttributeDefinitions: []types.AttributeDefinition{
				{
					AttributeName: aws.String(kvKeyspaceAttr),
					AttributeType: types.ScalarAttributeTypeS,
				},
				{
					AttributeName: aws.String(kvKeyAttr),
					AttributeType: types.ScalarAttributeTypeB,
				},
			},
			KeySchema: []types.KeySchemaElement{
				{
					AttributeName: aws.String(kvKeyspaceAttr),
					KeyType:       types.KeyTypeHash,
				},
				{
					AttributeName: aws.String(kvKeyAttr),
					KeyType:       types.KeyTypeRange,
				},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	)

	if errors.As(err, new(*types.ResourceInUseException)) {
		return nil
	}

	return err
}
