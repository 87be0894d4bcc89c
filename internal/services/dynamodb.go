package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"local-events-aggregator/internal/dedup"
	"local-events-aggregator/internal/models"
)

// Index names on the events table
const (
	DedupIndex    = "dedup-index"
	CityDateIndex = "city-date-index"
	GeoCellIndex  = "geo-cell-index"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the service
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBService stores events in one table and operational records
// (region cache, fetch jobs, leases, analytics) in another
type DynamoDBService struct {
	client          DynamoDBAPI
	eventsTable     string
	operationsTable string
	policy          dedup.Policy
	now             func() time.Time
}

// NewDynamoDBService creates a new DynamoDB service instance
func NewDynamoDBService(client DynamoDBAPI, eventsTable, operationsTable string, policy dedup.Policy) *DynamoDBService {
	return &DynamoDBService{
		client:          client,
		eventsTable:     eventsTable,
		operationsTable: operationsTable,
		policy:          policy,
		now:             time.Now,
	}
}

// Events Table Operations

// InsertEventIfAbsent stores an event unless one with the same
// (source, external_id) exists. It reports whether the event was inserted.
func (s *DynamoDBService) InsertEventIfAbsent(ctx context.Context, event *models.Event) (bool, error) {
	event.PopulateKeys()

	item, err := attributevalue.MarshalMap(event)
	if err != nil {
		return false, fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.eventsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert event: %w", err)
	}
	return true, nil
}

// FindDuplicateEvent returns the ID of the most recently created live event
// matching q, or "" when there is none
func (s *DynamoDBService) FindDuplicateEvent(ctx context.Context, q dedup.Query) (string, error) {
	titleKey := q.TitleKey()
	if titleKey == "" || q.EventDate == "" {
		return "", nil
	}

	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.eventsTable),
		IndexName:              aws.String(DedupIndex),
		KeyConditionExpression: aws.String("DedupKey = :dedupKey"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":dedupKey": &types.AttributeValueMemberS{Value: models.GenerateDedupKey(q.EventDate, titleKey)},
		},
	}, 0)
	if err != nil {
		return "", fmt.Errorf("failed to query duplicate candidates: %w", err)
	}

	var events []models.Event
	if err := attributevalue.UnmarshalListOfMaps(items, &events); err != nil {
		return "", fmt.Errorf("failed to unmarshal duplicate candidates: %w", err)
	}

	now := s.now()
	live := events[:0]
	for _, e := range events {
		if !e.IsExpired(now) {
			live = append(live, e)
		}
	}

	if best := s.policy.Best(q, live); best != nil {
		return best.ID, nil
	}
	return "", nil
}

// QueryEvents returns live events for a city or around a point, ordered by start date
func (s *DynamoDBService) QueryEvents(ctx context.Context, q models.EventQuery) ([]models.Event, error) {
	if q.Now.IsZero() {
		q.Now = s.now()
	}

	var inputs []*dynamodb.QueryInput
	switch {
	case q.HasRadius():
		for _, cell := range models.GeoCellsCovering(*q.Latitude, *q.Longitude, q.RadiusKm) {
			inputs = append(inputs, &dynamodb.QueryInput{
				TableName:              aws.String(s.eventsTable),
				IndexName:              aws.String(GeoCellIndex),
				KeyConditionExpression: aws.String("GeoCell = :geoCell"),
				FilterExpression:       aws.String("#ttl > :now"),
				ExpressionAttributeNames: map[string]string{
					"#ttl": "ttl",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":geoCell": &types.AttributeValueMemberS{Value: cell},
					":now":     &types.AttributeValueMemberN{Value: strconv.FormatInt(q.Now.Unix(), 10)},
				},
			})
		}
	case q.City != "":
		inputs = append(inputs, &dynamodb.QueryInput{
			TableName:              aws.String(s.eventsTable),
			IndexName:              aws.String(CityDateIndex),
			KeyConditionExpression: aws.String("CityKey = :cityKey"),
			FilterExpression:       aws.String("#ttl > :now"),
			ExpressionAttributeNames: map[string]string{
				"#ttl": "ttl",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":cityKey": &types.AttributeValueMemberS{Value: models.GenerateCityKey(q.City)},
				":now":     &types.AttributeValueMemberN{Value: strconv.FormatInt(q.Now.Unix(), 10)},
			},
		})
	default:
		return nil, fmt.Errorf("event query needs a city or a point and radius")
	}

	var events []models.Event
	for _, input := range inputs {
		items, err := s.queryAll(ctx, input, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to query events: %w", err)
		}
		var page []models.Event
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal events: %w", err)
		}
		for i := range page {
			if q.Matches(&page[i]) {
				events = append(events, page[i])
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartDate.Before(events[j].StartDate)
	})
	if q.Limit > 0 && len(events) > q.Limit {
		events = events[:q.Limit]
	}
	return events, nil
}

// CountEvents counts live events matching q
func (s *DynamoDBService) CountEvents(ctx context.Context, q models.EventQuery) (int, error) {
	q.Limit = 0
	events, err := s.QueryEvents(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// Operations Table Operations

// GetRegionCache retrieves a region cache entry, nil when the region has none
func (s *DynamoDBService) GetRegionCache(ctx context.Context, r models.Region) (*models.RegionCacheEntry, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.operationsTable),
		Key:       itemKey(models.CreateRegionPK(r), models.SortKeyCache),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get region cache: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var entry models.RegionCacheEntry
	if err := attributevalue.UnmarshalMap(result.Item, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal region cache: %w", err)
	}
	return &entry, nil
}

// PutRegionCache upserts a region cache entry
func (s *DynamoDBService) PutRegionCache(ctx context.Context, entry *models.RegionCacheEntry) error {
	entry.PK = models.CreateRegionPK(models.Region{Country: entry.Country, Region: entry.Region, City: entry.City})
	entry.SK = models.SortKeyCache
	return s.put(ctx, s.operationsTable, entry, "region cache")
}

// PutJob upserts a fetch job audit record
func (s *DynamoDBService) PutJob(ctx context.Context, job *models.FetchJob) error {
	job.PK = models.CreateJobPK(job.JobID)
	job.SK = models.SortKeyJob
	job.LocationStartedKey = models.GenerateLocationStartedKey(job.LocationKey)
	return s.put(ctx, s.operationsTable, job, "fetch job")
}

// PutAnalytics stores an analytics entry
func (s *DynamoDBService) PutAnalytics(ctx context.Context, entry *models.AnalyticsEntry) error {
	return s.put(ctx, s.operationsTable, entry, "analytics entry")
}

// AcquireLease claims a location key for ttl. It returns false when another
// owner holds an unexpired lease.
func (s *DynamoDBService) AcquireLease(ctx context.Context, locationKey, owner string, ttl time.Duration) (bool, error) {
	now := s.now()
	lease := &models.Lease{
		PK:          models.CreateLeasePK(locationKey),
		SK:          models.SortKeyLease,
		LocationKey: locationKey,
		Owner:       owner,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(ttl).UnixMilli(),
		TTL:         models.CalculateTTL(now, ttl+time.Hour),
	}

	item, err := attributevalue.MarshalMap(lease)
	if err != nil {
		return false, fmt.Errorf("failed to marshal lease: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.operationsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return true, nil
}

// ReleaseLease deletes a lease if it is still held by owner
func (s *DynamoDBService) ReleaseLease(ctx context.Context, locationKey, owner string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.operationsTable),
		Key:                 itemKey(models.CreateLeasePK(locationKey), models.SortKeyLease),
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil
		}
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

func (s *DynamoDBService) put(ctx context.Context, table string, v interface{}, what string) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", what, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", what, err)
	}
	return nil
}

// queryAll follows LastEvaluatedKey until the query is exhausted or max items are read
func (s *DynamoDBService) queryAll(ctx context.Context, input *dynamodb.QueryInput, max int) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)
		if len(result.LastEvaluatedKey) == 0 || (max > 0 && len(items) >= max) {
			return items, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
