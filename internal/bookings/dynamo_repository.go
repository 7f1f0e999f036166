package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	bookingNumberIndex = "bookingNumber-index"
	callerUserIndex    = "callerUserId-index"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoRepository stores bookings as documents keyed by id, with global
// secondary indexes on bookingNumber and callerUserId.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided DynamoDB client.
func NewDynamoRepository(client dynamoAPI, tableName string) *DynamoRepository {
	if client == nil {
		panic("bookings: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("bookings: table name cannot be empty")
	}
	return &DynamoRepository{client: client, tableName: tableName}
}

// Insert writes the document. The booking number is checked against the
// bookingNumber index first; the index is eventually consistent, so the
// random component of the number remains the real collision guard.
func (r *DynamoRepository) Insert(ctx context.Context, b *Booking) error {
	if _, err := r.GetByNumber(ctx, b.BookingNumber); err == nil {
		return ErrDuplicateBookingNumber
	} else if !errors.Is(err, ErrBookingNotFound) {
		return err
	}

	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return fmt.Errorf("bookings: marshal booking: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("bookings: put booking: %w", err)
	}
	return nil
}

func (r *DynamoRepository) UpdateSync(ctx context.Context, id string, update SyncUpdate) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
		UpdateExpression:    aws.String("SET #sync = :sync, #erp = :erp, #err = :err"),
		ExpressionAttributeNames: map[string]string{
			"#sync": "syncStatus",
			"#erp":  "erpAppointmentId",
			"#err":  "syncError",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sync": &types.AttributeValueMemberS{Value: string(update.Status)},
			":erp":  &types.AttributeValueMemberS{Value: update.ERPAppointmentID},
			":err":  &types.AttributeValueMemberS{Value: update.Error},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("bookings: update sync: %w", err)
	}
	return nil
}

func (r *DynamoRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bookings: get booking: %w", err)
	}
	if out.Item == nil {
		return nil, ErrBookingNotFound
	}
	var b Booking
	if err := attributevalue.UnmarshalMap(out.Item, &b); err != nil {
		return nil, fmt.Errorf("bookings: decode booking: %w", err)
	}
	return &b, nil
}

func (r *DynamoRepository) GetByNumber(ctx context.Context, bookingNumber string) (*Booking, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(bookingNumberIndex),
		KeyConditionExpression: aws.String("bookingNumber = :n"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberS{Value: bookingNumber},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("bookings: query booking number: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrBookingNotFound
	}
	var b Booking
	if err := attributevalue.UnmarshalMap(out.Items[0], &b); err != nil {
		return nil, fmt.Errorf("bookings: decode booking: %w", err)
	}
	return &b, nil
}

// List queries the caller index when a caller is given and scans otherwise.
// Ordering and time bounds are applied after decoding.
func (r *DynamoRepository) List(ctx context.Context, filter Filter) ([]*Booking, error) {
	var (
		items []map[string]types.AttributeValue
		err   error
	)
	if filter.CallerUserID != "" {
		items, err = r.queryCaller(ctx, filter.CallerUserID)
	} else {
		items, err = r.scan(ctx, filter.SyncStatus)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*Booking, 0, len(items))
	for _, item := range items {
		var b Booking
		if err := attributevalue.UnmarshalMap(item, &b); err != nil {
			return nil, fmt.Errorf("bookings: decode booking: %w", err)
		}
		if filter.matches(&b) {
			out = append(out, &b)
		}
	}
	sortByAppointmentDesc(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *DynamoRepository) queryCaller(ctx context.Context, callerUserID string) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(callerUserIndex),
			KeyConditionExpression: aws.String("callerUserId = :u"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": &types.AttributeValueMemberS{Value: callerUserID},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("bookings: query caller bookings: %w", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

func (r *DynamoRepository) scan(ctx context.Context, syncStatus SyncStatus) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		input := &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: start,
		}
		if syncStatus != "" {
			input.FilterExpression = aws.String("#sync = :sync")
			input.ExpressionAttributeNames = map[string]string{"#sync": "syncStatus"}
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":sync": &types.AttributeValueMemberS{Value: string(syncStatus)},
			}
		}
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan bookings: %w", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}
