package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/go-api-verification/internal/domain"
)

// itemAPI is the subset of *dynamodb.Client used for verification records.
type itemAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// verificationItem is the stored shape. PK: email.
// TTL is a Unix timestamp used as DynamoDB TTL; it trails ExpiresAt by the
// retention window so an expired code can still be reported as expired.
type verificationItem struct {
	Email     string    `dynamodbav:"email"`
	Code      string    `dynamodbav:"code"`
	ExpiresAt time.Time `dynamodbav:"expires_at"`
	TTL       int64     `dynamodbav:"ttl"`
}

// VerificationStore manages pending email verification codes.
type VerificationStore struct {
	client    itemAPI
	tableName string
	retention time.Duration
}

func NewVerificationStore(client itemAPI, tableName string, retention time.Duration) *VerificationStore {
	return &VerificationStore{client: client, tableName: tableName, retention: retention}
}

func (r *VerificationStore) Put(ctx context.Context, v *domain.VerificationRecord) error {
	item, err := attributevalue.MarshalMap(verificationItem{
		Email:     v.Email,
		Code:      v.Code,
		ExpiresAt: v.ExpiresAt.UTC(),
		TTL:       v.ExpiresAt.Add(r.retention).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *VerificationStore) Get(ctx context.Context, email string) (*domain.VerificationRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("email", email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	var it verificationItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	// DynamoDB TTL deletion is lazy; items past it are gone as far as callers know.
	if it.TTL > 0 && time.Now().Unix() > it.TTL {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return &domain.VerificationRecord{Email: it.Email, Code: it.Code, ExpiresAt: it.ExpiresAt}, nil
}

func (r *VerificationStore) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	return err
}

// Consume deletes the record only while it still holds code, so two
// concurrent verifies cannot both succeed.
func (r *VerificationStore) Consume(ctx context.Context, email, code string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("email", email),
		ConditionExpression:      aws.String("#code = :code"),
		ExpressionAttributeNames: map[string]string{"#code": "code"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code": &types.AttributeValueMemberS{Value: code},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return err
}
