package prefsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// DynamoConfig locates the preference table.
type DynamoConfig struct {
	Region    string
	Endpoint  string // non-empty for DynamoDB Local
	TableName string
}

// DynamoStore implements RemoteStore on DynamoDB. Each user owns one item
// keyed USER#<id> / PREFS#settings, the document-path equivalent of
// users/{userId}/preferences/settings.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoStore creates a DynamoDB client and returns a DynamoStore.
func NewDynamoStore(ctx context.Context, cfg DynamoConfig) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &DynamoStore{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.TableName,
	}, nil
}

const settingsSK = "PREFS#settings"

func (s *DynamoStore) key(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "USER#" + userID},
		"SK": &types.AttributeValueMemberS{Value: settingsSK},
	}
}

// Write merge-writes the full record into the user's settings item, so a
// replayed write leaves the item identical to a single one.
func (s *DynamoStore) Write(ctx context.Context, userID string, rec PreferenceRecord) error {
	update := "SET languageCode = :lang, themeMode = :theme, lastUpdated = :ts"

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              s.key(userID),
		UpdateExpression: &update,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lang":  &types.AttributeValueMemberS{Value: rec.LanguageCode},
			":theme": &types.AttributeValueMemberS{Value: rec.ThemeMode},
			":ts":    &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.LastUpdated, 10)},
		},
	})
	if err != nil {
		return classifyDynamoError("UpdateItem", err)
	}

	return nil
}

// Read fetches the user's settings item. A missing item is (nil, nil);
// structural validation is the caller's job.
func (s *DynamoStore) Read(ctx context.Context, userID string) (*PreferenceRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       s.key(userID),
	})
	if err != nil {
		return nil, classifyDynamoError("GetItem", err)
	}

	if out.Item == nil {
		return nil, nil
	}

	return unmarshalRecord(out.Item), nil
}

// Delete removes the user's settings item.
func (s *DynamoStore) Delete(ctx context.Context, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key:       s.key(userID),
	})
	if err != nil {
		return classifyDynamoError("DeleteItem", err)
	}

	return nil
}

// unmarshalRecord extracts the record fields from a DynamoDB item.
// Wrong-typed attributes are left at their zero value; Validate catches
// them downstream.
func unmarshalRecord(item map[string]types.AttributeValue) *PreferenceRecord {
	var rec PreferenceRecord

	if v, ok := item["languageCode"].(*types.AttributeValueMemberS); ok {
		rec.LanguageCode = v.Value
	}
	if v, ok := item["themeMode"].(*types.AttributeValueMemberS); ok {
		rec.ThemeMode = v.Value
	}
	if v, ok := item["lastUpdated"].(*types.AttributeValueMemberN); ok {
		if ts, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			rec.LastUpdated = ts
		}
	}

	return &rec
}

// classifyDynamoError maps DynamoDB failures onto the transient/permanent
// split the retry loop keys on. Anything unrecognized counts as transient.
func classifyDynamoError(op string, err error) error {
	kind := RemoteTransient

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException",
			"UnrecognizedClientException",
			"ValidationException",
			"ResourceNotFoundException",
			"ConditionalCheckFailedException":
			kind = RemotePermanent
		}
	}

	return &RemoteError{Kind: kind, Op: op, Err: err}
}
