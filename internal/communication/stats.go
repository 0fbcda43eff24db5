package communication

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"MemberPortal/internal/apperrors"
)

// CommunicationStats is the per-communication read-rate view.
type CommunicationStats struct {
	CommunicationID string `json:"communicationId"`
	RecipientCount  int64  `json:"recipientCount"`
	ReadCount       int64  `json:"readCount"`
	ReadPercentage  int    `json:"readPercentage"`
}

// ReadTotals is a recipient-ledger tally.
type ReadTotals struct {
	Total int64 `json:"total"`
	Read  int64 `json:"read"`
}

// KindReadRate is the read rate for one message kind.
type KindReadRate struct {
	MessageType    string `json:"messageType"`
	RecipientCount int64  `json:"recipientCount"`
	ReadCount      int64  `json:"readCount"`
	ReadPercentage int    `json:"readPercentage"`
}

// FleetStats is the dashboard aggregate over all communications and ledgers.
type FleetStats struct {
	ByMessageType     map[string]int64 `json:"byMessageType"`
	ByStatus          map[string]int64 `json:"byStatus"`
	MonthlySendVolume [12]int64        `json:"monthlySendVolume"`
	TotalRecipients   int64            `json:"totalRecipients"`
	TotalRead         int64            `json:"totalRead"`
	OverallReadRate   int              `json:"overallReadRate"`
	ReadRateByType    []KindReadRate   `json:"readRateByType"`
}

// FleetAggregator runs the fleet-wide aggregation pipelines.
type FleetAggregator interface {
	CountByMessageType(ctx context.Context) (map[string]int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	MonthlySendVolume(ctx context.Context, year int) ([12]int64, error)
	ReadTotals(ctx context.Context) (ReadTotals, error)
	ReadTotalsByMessageType(ctx context.Context) (map[string]ReadTotals, error)
}

// ReadPercentage computes round(read/total*100), and 0 for an empty ledger.
func ReadPercentage(read, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(read) / float64(total) * 100))
}

// StatsService produces read-only aggregates. Nothing here mutates state, so
// every query is safe to run concurrently with fan-out.
type StatsService struct {
	comms      CommunicationStore
	recipients RecipientLedger
	fleet      FleetAggregator
	now        func() time.Time
}

func NewStatsService(comms CommunicationStore, recipients RecipientLedger, fleet FleetAggregator) *StatsService {
	return &StatsService{comms: comms, recipients: recipients, fleet: fleet, now: time.Now}
}

// ForCommunication returns the read-rate view of one communication. Like the
// recipient listing, it is restricted to the sender or an elevated role.
func (s *StatsService) ForCommunication(ctx context.Context, actor Actor, id primitive.ObjectID) (*CommunicationStats, error) {
	comm, err := s.comms.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManage(comm) {
		return nil, apperrors.Unauthorized("not the sender of this communication")
	}
	total, err := s.recipients.CountByCommunication(ctx, id)
	if err != nil {
		return nil, err
	}
	read, err := s.recipients.CountReadByCommunication(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CommunicationStats{
		CommunicationID: id.Hex(),
		RecipientCount:  total,
		ReadCount:       read,
		ReadPercentage:  ReadPercentage(read, total),
	}, nil
}

func (s *StatsService) Fleet(ctx context.Context) (*FleetStats, error) {
	byType, err := s.fleet.CountByMessageType(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.fleet.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	monthly, err := s.fleet.MonthlySendVolume(ctx, s.now().Year())
	if err != nil {
		return nil, err
	}
	totals, err := s.fleet.ReadTotals(ctx)
	if err != nil {
		return nil, err
	}
	perKind, err := s.fleet.ReadTotalsByMessageType(ctx)
	if err != nil {
		return nil, err
	}

	rates := make([]KindReadRate, 0, len(perKind))
	for kind, t := range perKind {
		rates = append(rates, KindReadRate{
			MessageType:    kind,
			RecipientCount: t.Total,
			ReadCount:      t.Read,
			ReadPercentage: ReadPercentage(t.Read, t.Total),
		})
	}

	return &FleetStats{
		ByMessageType:     byType,
		ByStatus:          byStatus,
		MonthlySendVolume: monthly,
		TotalRecipients:   totals.Total,
		TotalRead:         totals.Read,
		OverallReadRate:   ReadPercentage(totals.Read, totals.Total),
		ReadRateByType:    rates,
	}, nil
}

// StatsRepository implements the fleet pipelines over the communications and
// recipient-ledger collections.
type StatsRepository struct {
	comms      *mongo.Collection
	recipients *mongo.Collection
}

func NewStatsRepository(db *mongo.Database) *StatsRepository {
	return &StatsRepository{
		comms:      db.Collection("communications"),
		recipients: db.Collection("communication_recipients"),
	}
}

func (r *StatsRepository) CountByMessageType(ctx context.Context) (map[string]int64, error) {
	return r.groupCount(ctx, "$message_type")
}

func (r *StatsRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.groupCount(ctx, "$status")
}

func (r *StatsRepository) groupCount(ctx context.Context, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.comms.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Count
	}
	return out, nil
}

func (r *StatsRepository) MonthlySendVolume(ctx context.Context, year int) ([12]int64, error) {
	var volume [12]int64
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"sent_at": bson.M{"$gte": start, "$lt": end}}}},
		{{Key: "$group", Value: bson.M{"_id": bson.M{"$month": "$sent_at"}, "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.comms.Aggregate(ctx, pipeline)
	if err != nil {
		return volume, err
	}
	var rows []struct {
		Month int   `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return volume, err
	}
	for _, row := range rows {
		if row.Month >= 1 && row.Month <= 12 {
			volume[row.Month-1] = row.Count
		}
	}
	return volume, nil
}

func (r *StatsRepository) ReadTotals(ctx context.Context) (ReadTotals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": 1},
			"read":  bson.M{"$sum": bson.M{"$cond": bson.A{"$read", 1, 0}}},
		}}},
	}
	cursor, err := r.recipients.Aggregate(ctx, pipeline)
	if err != nil {
		return ReadTotals{}, err
	}
	var rows []ReadTotals
	if err := cursor.All(ctx, &rows); err != nil {
		return ReadTotals{}, err
	}
	if len(rows) == 0 {
		return ReadTotals{}, nil
	}
	return rows[0], nil
}

func (r *StatsRepository) ReadTotalsByMessageType(ctx context.Context) (map[string]ReadTotals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         "communications",
			"localField":   "communication_id",
			"foreignField": "_id",
			"as":           "communication",
		}}},
		{{Key: "$unwind", Value: "$communication"}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$communication.message_type",
			"total": bson.M{"$sum": 1},
			"read":  bson.M{"$sum": bson.M{"$cond": bson.A{"$read", 1, 0}}},
		}}},
	}
	cursor, err := r.recipients.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Total int64  `bson:"total"`
		Read  int64  `bson:"read"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]ReadTotals, len(rows))
	for _, row := range rows {
		out[row.ID] = ReadTotals{Total: row.Total, Read: row.Read}
	}
	return out, nil
}
