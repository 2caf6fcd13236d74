package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/shawn/tankwatch/internal/webhook"
)

// DynamoStore implements Store using AWS DynamoDB
type DynamoStore struct {
	db        *dynamodb.Client
	tableName string
}

// NewDynamo creates a DynamoDB-backed registration store
func NewDynamo(db *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{db: db, tableName: tableName}
}

// CreateTable creates the registrations table keyed by id. Used for local
// development against DynamoDB Local; an existing table is not an error.
func CreateTable(ctx context.Context, db *dynamodb.Client, tableName string) error {
	_, err := db.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(tableName),
		KeySchema:            []types.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash}},
		AttributeDefinitions: []types.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS}},
		BillingMode:          types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("dynamodb CreateTable: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*webhook.Registration, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var rec webhook.Registration
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal webhook: %w", err)
	}
	return &rec, nil
}

func (s *DynamoStore) Create(ctx context.Context, r *webhook.Registration) error {
	return s.put(ctx, r, "attribute_not_exists(id)", true)
}

func (s *DynamoStore) Put(ctx context.Context, r *webhook.Registration) error {
	return s.put(ctx, r, "attribute_exists(id)", false)
}

func (s *DynamoStore) put(ctx context.Context, r *webhook.Registration, cond string, creating bool) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal webhook: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String(cond),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return &ConditionalCheckFailed{ID: r.ID, Exists: creating}
	}
	if err != nil {
		return fmt.Errorf("dynamodb PutItem: %w", err)
	}
	return nil
}

// List scans the whole table. DynamoDB has no insertion order, so records
// are ordered by created_at with id as tie breaker.
func (s *DynamoStore) List(ctx context.Context) ([]*webhook.Registration, error) {
	var records []*webhook.Registration
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.db.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: startKey,
			ConsistentRead:    aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb Scan: %w", err)
		}
		for _, item := range out.Items {
			var rec webhook.Registration
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("unmarshal webhook: %w", err)
			}
			records = append(records, &rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}
