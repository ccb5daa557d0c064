package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
)

// queryLogStore implements driven.QueryLogStore.
type queryLogStore struct {
	store *Store
}

var _ driven.QueryLogStore = (*queryLogStore)(nil)

// Save appends a query record. A missing ID is generated and written back.
func (s *queryLogStore) Save(ctx context.Context, record *domain.SearchQueryRecord) error {
	if record == nil {
		return domain.ErrInvalidInput
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SearchedAt.IsZero() {
		record.SearchedAt = time.Now()
	}

	entities, err := json.Marshal(record.Entities)
	if err != nil {
		return fmt.Errorf("marshalling entities: %w", err)
	}
	filters, err := json.Marshal(record.Filters)
	if err != nil {
		return fmt.Errorf("marshalling filters: %w", err)
	}

	sort := record.Sort
	if sort == "" {
		sort = domain.SortRelevance
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO query_log (id, user_id, session_id, query, query_lower, entities, type_label,
			filters, sort, results_count, execution_ns, searched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, nullString(record.UserID), nullString(record.SessionID), record.Query,
		strings.ToLower(record.Query), string(entities), record.TypeLabel(), string(filters),
		string(sort), record.ResultsCount, int64(record.ExecutionTime), record.SearchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving query record: %w", err)
	}

	for _, click := range record.Clicks {
		if err := s.AppendClick(ctx, record.ID, click); err != nil {
			return err
		}
	}
	return nil
}

// AppendClick attaches a click to a logged query.
func (s *queryLogStore) AppendClick(ctx context.Context, queryID string, click domain.ClickedResult) error {
	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now()
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO query_clicks (query_id, result_id, result_type, position, clicked_at)
		SELECT id, ?, ?, ?, ? FROM query_log WHERE id = ?
	`, click.ResultID, click.ResultType.String(), click.Position, click.ClickedAt.UnixMilli(), queryID)
	if err != nil {
		return fmt.Errorf("appending click: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("appending click: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("query %s: %w", queryID, domain.ErrNotFound)
	}
	return nil
}

// Get returns one logged query with its clicks.
func (s *queryLogStore) Get(ctx context.Context, queryID string) (*domain.SearchQueryRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, query, entities, filters, sort, results_count, execution_ns, searched_at
		FROM query_log WHERE id = ?
	`, queryID)

	var rec domain.SearchQueryRecord
	var userID, sessionID sql.NullString
	var entities, filters, sort string
	var execNS, searchedAt int64
	if err := row.Scan(&rec.ID, &userID, &sessionID, &rec.Query, &entities, &filters, &sort,
		&rec.ResultsCount, &execNS, &searchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("query %s: %w", queryID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning query record: %w", err)
	}

	if err := json.Unmarshal([]byte(entities), &rec.Entities); err != nil {
		return nil, fmt.Errorf("unmarshaling entities: %w", err)
	}
	if err := json.Unmarshal([]byte(filters), &rec.Filters); err != nil {
		return nil, fmt.Errorf("unmarshaling filters: %w", err)
	}
	rec.UserID = userID.String
	rec.SessionID = sessionID.String
	rec.Sort = domain.SortMode(sort)
	rec.ExecutionTime = time.Duration(execNS)
	rec.SearchedAt = time.UnixMilli(searchedAt).UTC()

	clicks, err := s.clicks(ctx, queryID)
	if err != nil {
		return nil, err
	}
	rec.Clicks = clicks
	return &rec, nil
}

func (s *queryLogStore) clicks(ctx context.Context, queryID string) ([]domain.ClickedResult, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT result_id, result_type, position, clicked_at
		FROM query_clicks WHERE query_id = ? ORDER BY id
	`, queryID)
	if err != nil {
		return nil, fmt.Errorf("querying clicks: %w", err)
	}
	defer rows.Close()

	var clicks []domain.ClickedResult
	for rows.Next() {
		var c domain.ClickedResult
		var resultType string
		var clickedAt int64
		if err := rows.Scan(&c.ResultID, &resultType, &c.Position, &clickedAt); err != nil {
			return nil, fmt.Errorf("scanning click: %w", err)
		}
		// Unknown types stay zero rather than failing the read.
		_ = c.ResultType.UnmarshalText([]byte(resultType))
		c.ClickedAt = time.UnixMilli(clickedAt).UTC()
		clicks = append(clicks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating clicks: %w", err)
	}
	return clicks, nil
}

// UserHistory returns the user's distinct past queries starting with prefix, most recent first.
func (s *queryLogStore) UserHistory(ctx context.Context, userID, prefix string, limit int) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT query, MAX(searched_at) AS last_searched
		FROM query_log
		WHERE user_id = ? AND query_lower LIKE ? ESCAPE '\'
		GROUP BY query
		ORDER BY last_searched DESC, query
		LIMIT ?
	`, userID, escapeLike(strings.ToLower(prefix))+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("querying user history: %w", err)
	}
	defer rows.Close()

	history := []string{}
	for rows.Next() {
		var q string
		var last int64
		if err := rows.Scan(&q, &last); err != nil {
			return nil, fmt.Errorf("scanning user history: %w", err)
		}
		history = append(history, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user history: %w", err)
	}
	return history, nil
}

// PopularQueries groups queries by text, most frequent first.
func (s *queryLogStore) PopularQueries(
	ctx context.Context, prefix string, since time.Time, limit int,
) ([]domain.PopularQuery, error) {
	w := where{}
	if prefix != "" {
		w.add("query_lower LIKE ? ESCAPE '\\'", escapeLike(strings.ToLower(prefix))+"%")
	}
	if !since.IsZero() {
		w.add("searched_at >= ?", since.UnixMilli())
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT query, COUNT(*) AS n, AVG(results_count) AS avg_results
		FROM query_log`+w.String()+`
		GROUP BY query
		ORDER BY n DESC, avg_results DESC, query
		LIMIT ?
	`, append(w.args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("querying popular queries: %w", err)
	}
	defer rows.Close()

	popular := []domain.PopularQuery{}
	for rows.Next() {
		var p domain.PopularQuery
		if err := rows.Scan(&p.Query, &p.Count, &p.AvgResults); err != nil {
			return nil, fmt.Errorf("scanning popular query: %w", err)
		}
		p.AvgResults = domain.Round(p.AvgResults, 2)
		popular = append(popular, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating popular queries: %w", err)
	}
	return popular, nil
}

// Analytics summarises the log within r.
func (s *queryLogStore) Analytics(ctx context.Context, r domain.TimeRange, topLimit int) (*domain.SearchAnalytics, error) {
	w := rangeWhere(r)

	var a domain.SearchAnalytics
	var avgExec float64
	row := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT query), COALESCE(AVG(execution_ns), 0),
			COALESCE(AVG(results_count), 0), COALESCE(SUM(results_count = 0), 0)
		FROM query_log`+w.String(), w.args...)
	if err := row.Scan(&a.TotalSearches, &a.UniqueQueries, &avgExec, &a.AvgResultsCount, &a.ZeroResultSearches); err != nil {
		return nil, fmt.Errorf("summarising query log: %w", err)
	}
	a.AvgExecutionTime = time.Duration(avgExec)
	a.AvgResultsCount = domain.Round(a.AvgResultsCount, 2)
	a.ZeroResultRate = domain.Percent(a.ZeroResultSearches, a.TotalSearches)

	top, err := s.topSearches(ctx, w, topLimit)
	if err != nil {
		return nil, err
	}
	a.TopSearches = top

	byType, err := s.searchesByType(ctx, w)
	if err != nil {
		return nil, err
	}
	a.SearchesByType = byType

	return &a, nil
}

func (s *queryLogStore) topSearches(ctx context.Context, w where, limit int) ([]domain.TopSearch, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT query, COUNT(*) AS n, AVG(results_count), AVG(execution_ns)
		FROM query_log`+w.String()+`
		GROUP BY query
		ORDER BY n DESC, query
		LIMIT ?
	`, append(w.args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("querying top searches: %w", err)
	}
	defer rows.Close()

	top := []domain.TopSearch{}
	for rows.Next() {
		var t domain.TopSearch
		var avgExec float64
		if err := rows.Scan(&t.Query, &t.Count, &t.AvgResults, &avgExec); err != nil {
			return nil, fmt.Errorf("scanning top search: %w", err)
		}
		t.AvgResults = domain.Round(t.AvgResults, 2)
		t.AvgExecutionTime = time.Duration(avgExec)
		top = append(top, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating top searches: %w", err)
	}
	return top, nil
}

func (s *queryLogStore) searchesByType(ctx context.Context, w where) ([]domain.TypeCount, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT type_label, COUNT(*) AS n
		FROM query_log`+w.String()+`
		GROUP BY type_label
		ORDER BY n DESC, type_label
	`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("querying searches by type: %w", err)
	}
	defer rows.Close()

	counts := []domain.TypeCount{}
	for rows.Next() {
		var c domain.TypeCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning searches by type: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating searches by type: %w", err)
	}
	return counts, nil
}

// ClickThrough counts searches with at least one click within r.
func (s *queryLogStore) ClickThrough(ctx context.Context, r domain.TimeRange) (*domain.ClickThroughStats, error) {
	w := rangeWhere(r)

	var c domain.ClickThroughStats
	row := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(EXISTS (SELECT 1 FROM query_clicks k WHERE k.query_id = query_log.id)), 0)
		FROM query_log`+w.String(), w.args...)
	if err := row.Scan(&c.TotalSearches, &c.SearchesWithClicks); err != nil {
		return nil, fmt.Errorf("counting click-through: %w", err)
	}
	c.Rate = domain.Percent(c.SearchesWithClicks, c.TotalSearches)
	return &c, nil
}

// Trends returns one point per UTC day within r, oldest first.
func (s *queryLogStore) Trends(ctx context.Context, r domain.TimeRange) ([]domain.TrendPoint, error) {
	w := rangeWhere(r)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', searched_at / 1000, 'unixepoch') AS day,
			COUNT(*), AVG(results_count), AVG(execution_ns)
		FROM query_log`+w.String()+`
		GROUP BY day
		ORDER BY day
	`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("querying trends: %w", err)
	}
	defer rows.Close()

	points := []domain.TrendPoint{}
	for rows.Next() {
		var p domain.TrendPoint
		var avgExec float64
		if err := rows.Scan(&p.Date, &p.Count, &p.AvgResults, &avgExec); err != nil {
			return nil, fmt.Errorf("scanning trend: %w", err)
		}
		p.AvgResults = domain.Round(p.AvgResults, 2)
		p.AvgExecutionTime = time.Duration(avgExec)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trends: %w", err)
	}
	return points, nil
}

// UserBehavior summarises one user's searches within r.
func (s *queryLogStore) UserBehavior(
	ctx context.Context, userID string, r domain.TimeRange, topLimit int,
) (*domain.UserBehavior, error) {
	w := rangeWhere(r)
	w.add("user_id = ?", userID)

	b := domain.UserBehavior{UserID: userID}
	row := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT query),
			COALESCE(AVG((SELECT COUNT(*) FROM query_clicks k WHERE k.query_id = query_log.id)), 0)
		FROM query_log`+w.String(), w.args...)
	if err := row.Scan(&b.TotalSearches, &b.UniqueQueries, &b.AvgResultsClicked); err != nil {
		return nil, fmt.Errorf("summarising user behavior: %w", err)
	}
	b.AvgResultsClicked = domain.Round(b.AvgResultsClicked, 1)

	top, err := s.topSearches(ctx, w, topLimit)
	if err != nil {
		return nil, err
	}
	b.TopQueries = top
	return &b, nil
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func rangeWhere(r domain.TimeRange) where {
	w := where{}
	if !r.From.IsZero() {
		w.add("searched_at >= ?", r.From.UnixMilli())
	}
	if !r.To.IsZero() {
		w.add("searched_at <= ?", r.To.UnixMilli())
	}
	return w
}
