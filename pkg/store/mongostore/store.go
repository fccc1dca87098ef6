// Package mongostore implements store.Gateway against MongoDB, mirroring
// the collection layout, index set, and aggregation pipelines of the
// system this server replaces: one collection each for logs, spans,
// alert rules, dashboards, and notification channels.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/store"
)

// Store is a MongoDB-backed store.Gateway.
type Store struct {
	db       *mongo.Database
	logs     *mongo.Collection
	spans    *mongo.Collection
	alerts   *mongo.Collection
	dashbds  *mongo.Collection
	channels *mongo.Collection
}

// Connect dials uri, selects dbName, and ensures every index the query
// paths below depend on exists.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		db:       db,
		logs:     db.Collection("logs"),
		spans:    db.Collection("spans"),
		alerts:   db.Collection("alerts"),
		dashbds:  db.Collection("dashboards"),
		channels: db.Collection("notification_channels"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureIndexes creates the timestamp/level/service/compound/trace_id/
// text indexes on logs and the trace_id/service/start_time/compound/
// parent/text indexes on spans, matching the original DbClient::new.
func (s *Store) ensureIndexes(ctx context.Context) error {
	trueOpt := options.Index().SetSparse(true)

	logIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "level", Value: 1}}},
		{Keys: bson.D{{Key: "service", Value: 1}}},
		{Keys: bson.D{{Key: "service", Value: 1}, {Key: "level", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "trace_id", Value: 1}}, Options: trueOpt},
		{
			Keys: bson.D{{Key: "message", Value: "text"}, {Key: "service", Value: "text"}, {Key: "exception", Value: "text"}, {Key: "message_template", Value: "text"}},
			Options: options.Index().SetName("logs_text_search").SetWeights(bson.D{
				{Key: "message", Value: 10}, {Key: "exception", Value: 5}, {Key: "service", Value: 3}, {Key: "message_template", Value: 2},
			}),
		},
	}
	if _, err := s.logs.Indexes().CreateMany(ctx, logIdx); err != nil {
		return fmt.Errorf("mongostore: create log indexes: %w", err)
	}

	spanIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "trace_id", Value: 1}}},
		{Keys: bson.D{{Key: "service", Value: 1}}},
		{Keys: bson.D{{Key: "start_time", Value: -1}}},
		{Keys: bson.D{{Key: "trace_id", Value: 1}, {Key: "start_time_unix_nano", Value: 1}}},
		{Keys: bson.D{{Key: "parent_span_id", Value: 1}}, Options: trueOpt},
		{
			Keys: bson.D{{Key: "name", Value: "text"}, {Key: "service", Value: "text"}, {Key: "status.message", Value: "text"}},
			Options: options.Index().SetName("spans_text_search").SetWeights(bson.D{
				{Key: "name", Value: 10}, {Key: "service", Value: 5}, {Key: "status.message", Value: 3},
			}),
		},
	}
	if _, err := s.spans.Indexes().CreateMany(ctx, spanIdx); err != nil {
		return fmt.Errorf("mongostore: create span indexes: %w", err)
	}
	return nil
}

func (s *Store) InsertLogs(ctx context.Context, logs []kartexmodel.LogRecord) ([]string, error) {
	if len(logs) == 0 {
		return nil, nil
	}
	docs := make([]interface{}, len(logs))
	for i, l := range logs {
		docs[i] = l
	}
	res, err := s.logs.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("mongostore: insert logs: %w", err)
	}
	return objectIDsToHex(res.InsertedIDs), nil
}

func objectIDsToHex(ids []interface{}) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if oid, ok := id.(primitive.ObjectID); ok {
			out = append(out, oid.Hex())
		}
	}
	return out
}

func (s *Store) QueryLogs(ctx context.Context, filter kartexmodel.LogQueryFilter) ([]kartexmodel.LogRecord, error) {
	filter.ClampLimit()

	query := bson.D{}
	if filter.Level != nil {
		query = append(query, bson.E{Key: "level", Value: filter.Level.String()})
	}
	if filter.Service != "" {
		query = append(query, bson.E{Key: "service", Value: filter.Service})
	}
	if filter.Start != nil || filter.End != nil {
		rng := bson.D{}
		if filter.Start != nil {
			rng = append(rng, bson.E{Key: "$gte", Value: *filter.Start})
		}
		if filter.End != nil {
			rng = append(rng, bson.E{Key: "$lte", Value: *filter.End})
		}
		query = append(query, bson.E{Key: "timestamp", Value: rng})
	}
	switch {
	case filter.SearchRegex && filter.SearchField != "" && filter.Search != "":
		query = append(query, bson.E{Key: filter.SearchField, Value: bson.D{
			{Key: "$regex", Value: filter.Search},
			{Key: "$options", Value: "i"},
		}})
	case filter.Search != "":
		query = append(query, bson.E{Key: "$text", Value: bson.D{{Key: "$search", Value: filter.Search}}})
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(filter.Limit)).SetSkip(int64(filter.Skip))
	cur, err := s.logs.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: query logs: %w", err)
	}
	defer cur.Close(ctx)

	var out []kartexmodel.LogRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: decode logs: %w", err)
	}
	return out, nil
}

func (s *Store) GetLogByID(ctx context.Context, id string) (*kartexmodel.LogRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("mongostore: invalid log id: %w", err)
	}
	var out kartexmodel.LogRecord
	err = s.logs.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: get log: %w", err)
	}
	return &out, nil
}

func (s *Store) Stats(ctx context.Context) (kartexmodel.Stats, error) {
	st := kartexmodel.Stats{CountsByLevel: map[string]int64{}, CountsByService: map[string]int64{}}

	total, err := s.logs.CountDocuments(ctx, bson.D{})
	if err != nil {
		return st, fmt.Errorf("mongostore: count logs: %w", err)
	}
	st.TotalCount = total

	if err := groupCounts(ctx, s.logs, "level", st.CountsByLevel); err != nil {
		return st, err
	}
	if err := groupCounts(ctx, s.logs, "service", st.CountsByService); err != nil {
		return st, err
	}
	return st, nil
}

func groupCounts(ctx context.Context, coll *mongo.Collection, field string, into map[string]int64) error {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$" + field}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("mongostore: group by %s: %w", field, err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return fmt.Errorf("mongostore: decode group by %s: %w", field, err)
	}
	for _, r := range rows {
		into[r.ID] = r.Count
	}
	return nil
}

func (s *Store) InsertSpans(ctx context.Context, spans []kartexmodel.Span) ([]string, error) {
	if len(spans) == 0 {
		return nil, nil
	}
	docs := make([]interface{}, len(spans))
	for i, sp := range spans {
		docs[i] = sp
	}
	res, err := s.spans.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("mongostore: insert spans: %w", err)
	}
	return objectIDsToHex(res.InsertedIDs), nil
}

func (s *Store) GetSpanByID(ctx context.Context, id string) (*kartexmodel.Span, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("mongostore: invalid span id: %w", err)
	}
	var out kartexmodel.Span
	err = s.spans.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: get span: %w", err)
	}
	return &out, nil
}

func (s *Store) GetTraceSpans(ctx context.Context, traceID string) ([]kartexmodel.Span, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_time_unix_nano", Value: 1}})
	cur, err := s.spans.Find(ctx, bson.D{{Key: "trace_id", Value: traceID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: query trace spans: %w", err)
	}
	defer cur.Close(ctx)

	var out []kartexmodel.Span
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: decode trace spans: %w", err)
	}
	return out, nil
}

func (s *Store) GetTraceLogs(ctx context.Context, traceID string) ([]kartexmodel.LogRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.logs.Find(ctx, bson.D{{Key: "trace_id", Value: traceID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: query trace logs: %w", err)
	}
	defer cur.Close(ctx)

	var out []kartexmodel.LogRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: decode trace logs: %w", err)
	}
	return out, nil
}

// GetTraceDetail returns nil, nil if the trace has no spans, matching the
// original's `if spans.is_empty() { return Ok(None) }` short-circuit even
// when correlated logs exist.
func (s *Store) GetTraceDetail(ctx context.Context, traceID string) (*kartexmodel.TraceDetail, error) {
	spans, err := s.GetTraceSpans(ctx, traceID)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, nil
	}
	logs, err := s.GetTraceLogs(ctx, traceID)
	if err != nil {
		return nil, err
	}
	return &kartexmodel.TraceDetail{TraceID: traceID, Spans: spans, Logs: logs}, nil
}

func (s *Store) GetTraceForLog(ctx context.Context, logID string) (*kartexmodel.TraceDetail, error) {
	log, err := s.GetLogByID(ctx, logID)
	if err != nil || log == nil || log.TraceID == "" {
		return nil, err
	}
	return s.GetTraceDetail(ctx, log.TraceID)
}

// QueryTraces aggregates root spans (parent_span_id absent) into
// TraceSummary rows via a $lookup against the spans collection itself,
// matching the original's pipeline shape exactly.
func (s *Store) QueryTraces(ctx context.Context, filter kartexmodel.TraceSummaryFilter) ([]kartexmodel.TraceSummary, error) {
	match := bson.D{{Key: "parent_span_id", Value: bson.D{{Key: "$exists", Value: false}}}}
	if filter.Service != "" {
		match = append(match, bson.E{Key: "service", Value: filter.Service})
	}
	if filter.Start != nil {
		match = append(match, bson.E{Key: "start_time", Value: bson.D{{Key: "$gte", Value: *filter.Start}}})
	}
	if filter.End != nil {
		match = append(match, bson.E{Key: "start_time", Value: bson.D{{Key: "$lte", Value: *filter.End}}})
	}
	if filter.MinDurMs != nil {
		match = append(match, bson.E{Key: "duration_ms", Value: bson.D{{Key: "$gte", Value: *filter.MinDurMs}}})
	}
	if filter.MaxDurMs != nil {
		match = append(match, bson.E{Key: "duration_ms", Value: bson.D{{Key: "$lte", Value: *filter.MaxDurMs}}})
	}
	if filter.Status != nil {
		match = append(match, bson.E{Key: "status.code", Value: int(*filter.Status)})
	}
	if filter.Search != "" {
		match = append(match, bson.E{Key: "$text", Value: bson.D{{Key: "$search", Value: filter.Search}}})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "start_time", Value: -1}}}},
		{{Key: "$skip", Value: int64(filter.Skip)}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "spans"},
			{Key: "localField", Value: "trace_id"},
			{Key: "foreignField", Value: "trace_id"},
			{Key: "as", Value: "all_spans"},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "trace_id", Value: 1},
			{Key: "root_span_name", Value: "$name"},
			{Key: "service", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
			{Key: "duration_ms", Value: 1},
			{Key: "status", Value: 1},
			{Key: "span_count", Value: bson.D{{Key: "$size", Value: "$all_spans"}}},
			{Key: "error_count", Value: bson.D{{Key: "$size", Value: bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: "$all_spans"},
				{Key: "as", Value: "span"},
				{Key: "cond", Value: bson.D{{Key: "$eq", Value: bson.A{"$$span.status.code", 2}}}},
			}}}}}},
		}}},
	}

	cur, err := s.spans.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongostore: query traces: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		TraceID      string               `bson:"trace_id"`
		RootSpanName string               `bson:"root_span_name"`
		Service      string               `bson:"service"`
		StartTime    time.Time            `bson:"start_time"`
		EndTime      time.Time            `bson:"end_time"`
		DurationMs   float64              `bson:"duration_ms"`
		Status       kartexmodel.SpanStatus `bson:"status"`
		SpanCount    int                  `bson:"span_count"`
		ErrorCount   int                  `bson:"error_count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongostore: decode trace summaries: %w", err)
	}

	out := make([]kartexmodel.TraceSummary, len(rows))
	for i, r := range rows {
		out[i] = kartexmodel.TraceSummary{
			TraceID: r.TraceID, RootSpanName: r.RootSpanName, Service: r.Service,
			StartTime: r.StartTime, EndTime: r.EndTime, DurationMs: r.DurationMs,
			SpanCount: r.SpanCount, ErrorCount: r.ErrorCount, Status: r.Status,
		}
	}
	return out, nil
}

func (s *Store) CreateDashboard(ctx context.Context, d kartexmodel.Dashboard) (string, error) {
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	res, err := s.dashbds.InsertOne(ctx, d)
	if err != nil {
		return "", fmt.Errorf("mongostore: create dashboard: %w", err)
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *Store) GetDashboard(ctx context.Context, id string) (*kartexmodel.Dashboard, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("mongostore: invalid dashboard id: %w", err)
	}
	var out kartexmodel.Dashboard
	err = s.dashbds.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: get dashboard: %w", err)
	}
	return &out, nil
}

func (s *Store) ListDashboards(ctx context.Context) ([]kartexmodel.Dashboard, error) {
	cur, err := s.dashbds.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongostore: list dashboards: %w", err)
	}
	defer cur.Close(ctx)
	var out []kartexmodel.Dashboard
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: decode dashboards: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateDashboard(ctx context.Context, id string, d kartexmodel.Dashboard) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("mongostore: invalid dashboard id: %w", err)
	}
	d.UpdatedAt = time.Now()
	res, err := s.dashbds.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, d)
	if err != nil {
		return fmt.Errorf("mongostore: update dashboard: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDashboard(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("mongostore: invalid dashboard id: %w", err)
	}
	res, err := s.dashbds.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("mongostore: delete dashboard: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateNotificationChannel(ctx context.Context, c kartexmodel.NotificationChannelConfig) (string, error) {
	res, err := s.channels.InsertOne(ctx, c)
	if err != nil {
		return "", fmt.Errorf("mongostore: create notification channel: %w", err)
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *Store) GetNotificationChannel(ctx context.Context, id string) (kartexmodel.NotificationChannelConfig, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return kartexmodel.NotificationChannelConfig{}, fmt.Errorf("mongostore: invalid channel id: %w", err)
	}
	var out kartexmodel.NotificationChannelConfig
	err = s.channels.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return kartexmodel.NotificationChannelConfig{}, store.ErrNotFound
	}
	if err != nil {
		return kartexmodel.NotificationChannelConfig{}, fmt.Errorf("mongostore: get notification channel: %w", err)
	}
	return out, nil
}

func (s *Store) ListNotificationChannels(ctx context.Context) ([]kartexmodel.NotificationChannelConfig, error) {
	cur, err := s.channels.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongostore: list notification channels: %w", err)
	}
	defer cur.Close(ctx)
	var out []kartexmodel.NotificationChannelConfig
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: decode notification channels: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteNotificationChannel(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("mongostore: invalid channel id: %w", err)
	}
	res, err := s.channels.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("mongostore: delete notification channel: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAlertRule(ctx context.Context, r kartexmodel.AlertRule) (string, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.alerts.InsertOne(ctx, r)
	if err != nil {
		return "", fmt.Errorf("mongostore: create alert rule: %w", err)
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *Store) ListAlertRules(ctx context.Context) ([]kartexmodel.AlertRule, error) {
	cur, err := s.alerts.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongostore: list alert rules: %w", err)
	}
	defer cur.Close(ctx)
	var out []kartexmodel.AlertRule
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: decode alert rules: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateAlertRule(ctx context.Context, id string, r kartexmodel.AlertRule) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("mongostore: invalid alert rule id: %w", err)
	}
	res, err := s.alerts.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, r)
	if err != nil {
		return fmt.Errorf("mongostore: update alert rule: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAlertRule(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("mongostore: invalid alert rule id: %w", err)
	}
	res, err := s.alerts.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("mongostore: delete alert rule: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TouchAlertRule applies the `$set last_triggered` / `$inc trigger_count`
// update the original issues after every successful evaluation.
func (s *Store) TouchAlertRule(ctx context.Context, id string, triggeredAt time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("mongostore: invalid alert rule id: %w", err)
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "last_triggered", Value: triggeredAt}}},
		{Key: "$inc", Value: bson.D{{Key: "trigger_count", Value: 1}}},
	}
	res, err := s.alerts.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return fmt.Errorf("mongostore: touch alert rule: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.Gateway = (*Store)(nil)
