package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// PostgresStore is the read adapter over the document store's tables. The
// effective link reach and the ancestor-deletion marker are derived at read
// time from the materialized paths, so callers always see post-inheritance
// values.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// docSelect projects a document row together with its inherited fields.
// Ancestor rows are matched by segment-aligned prefix on the materialized
// path (all paths are whole segments, so left() lands on boundaries).
// Every expression carries an explicit output name: queries wrap this in a
// derived table and reference columns by those names.
const docSelect = `
	SELECT d.id, d.path, COALESCE(d.title, '') AS title, COALESCE(d.content, '') AS content,
		d.depth, d.numchild, d.created_at, d.updated_at,
		(SELECT CASE
			WHEN bool_or(a.link_reach = 'public') THEN 'public'
			WHEN bool_or(a.link_reach = 'authenticated') THEN 'authenticated'
			ELSE 'restricted'
		END
		FROM documents a
		WHERE a.path = left(d.path, length(a.path))) AS link_reach,
		d.deleted_at,
		(SELECT min(a.deleted_at)
		FROM documents a
		WHERE a.path = left(d.path, length(a.path))
			AND a.id <> d.id
			AND a.deleted_at IS NOT NULL) AS ancestors_deleted_at
	FROM documents d
`

// authorizedPredicate matches documents the requester holds a grant on,
// directly or through an ancestor. Placeholders: user sub, teams.
func authorizedPredicate(subArg, teamsArg int) string {
	return fmt.Sprintf(`EXISTS (
		SELECT 1 FROM document_accesses da
		JOIN documents ad ON ad.id = da.document_id
		WHERE ad.path = left(d.path, length(ad.path))
			AND (da.user_sub = $%d OR da.team = ANY($%d))
	)`, subArg, teamsArg)
}

func scanDocument(scan func(...any) error) (Document, error) {
	var d Document
	var deletedAt, ancestorsDeletedAt sql.NullTime
	err := scan(&d.ID, &d.Path, &d.Title, &d.Content, &d.Depth, &d.NumChild,
		&d.CreatedAt, &d.UpdatedAt, &d.LinkReach, &deletedAt, &ancestorsDeletedAt)
	if err != nil {
		return Document{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		d.DeletedAt = &t
	}
	if ancestorsDeletedAt.Valid {
		t := ancestorsDeletedAt.Time
		d.AncestorsDeletedAt = &t
	}
	return d, nil
}

// ListDocuments returns up to limit documents with id greater than afterID,
// ascending by id. The cursor keeps the corpus scan correct under
// concurrent inserts, unlike offset paging.
func (s *PostgresStore) ListDocuments(ctx context.Context, afterID int64, limit int, scope Scope) ([]Document, error) {
	query := docSelect + ` WHERE d.id > $1`
	args := []any{afterID}
	if scope.UpdatedSince != nil {
		query += ` AND d.updated_at >= $2`
		args = append(args, *scope.UpdatedSince)
	}
	query += fmt.Sprintf(` ORDER BY d.id ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0, limit)
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (Document, error) {
	row := s.db.QueryRowContext(ctx, docSelect+` WHERE d.id = $1`, id)
	d, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListAccessGrants returns every grant whose document path is in paths, in
// one query.
func (s *PostgresStore) ListAccessGrants(ctx context.Context, paths []string) ([]AccessGrant, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.path, COALESCE(da.user_sub, ''), COALESCE(da.team, '')
		FROM document_accesses da
		JOIN documents d ON d.id = da.document_id
		WHERE d.path = ANY($1)
	`, paths)
	if err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	defer rows.Close()

	grants := make([]AccessGrant, 0)
	for rows.Next() {
		var g AccessGrant
		if err := rows.Scan(&g.Path, &g.UserSub, &g.Team); err != nil {
			return nil, fmt.Errorf("scan access grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access grants: %w", err)
	}
	return grants, nil
}

// ListVisitedNotOwned returns ids of non-deleted documents the requester has
// viewed through a link but holds no grant on. These ids widen the external
// query so previously-visited public documents stay findable, without
// leaking documents the requester never saw.
func (s *PostgresStore) ListVisitedNotOwned(ctx context.Context, req Requester) ([]int64, error) {
	if req.Sub == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id
		FROM documents d
		JOIN link_traces lt ON lt.document_id = d.id AND lt.user_sub = $1
		WHERE d.deleted_at IS NULL
			AND NOT EXISTS (
				SELECT 1 FROM documents a
				WHERE a.path = left(d.path, length(a.path))
					AND a.id <> d.id AND a.deleted_at IS NOT NULL
			)
			AND NOT EXISTS (
				SELECT 1 FROM document_accesses da
				WHERE da.document_id = d.id
					AND (da.user_sub = $1 OR da.team = ANY($2))
			)
		ORDER BY d.id
	`, req.Sub, req.Teams)
	if err != nil {
		return nil, fmt.Errorf("list visited documents: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan visited id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visited ids: %w", err)
	}
	return ids, nil
}

// FilterAuthorized returns the documents among ids that the requester may
// see (granted directly or via an ancestor, or link-visited and reachable),
// excluding deleted ones, in the exact order of ids.
func (s *PostgresStore) FilterAuthorized(ctx context.Context, req Requester, ids []int64) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT * FROM (` + docSelect + `) d
		WHERE d.id = ANY($3)
			AND d.deleted_at IS NULL AND d.ancestors_deleted_at IS NULL
			AND (` + authorizedPredicate(1, 2) + `
				OR (d.link_reach <> 'restricted' AND EXISTS (
					SELECT 1 FROM link_traces lt
					WHERE lt.document_id = d.id AND lt.user_sub = $1
				)))`

	rows, err := s.db.QueryContext(ctx, query, req.Sub, req.Teams, ids)
	if err != nil {
		return nil, fmt.Errorf("filter authorized documents: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]Document, len(ids))
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	// Reassemble in caller order; SQL gives no ordering guarantee here.
	ordered := make([]Document, 0, len(byID))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}

// SearchAuthorizedByTitle is the degraded search path used when no external
// index is configured: case-insensitive substring match on title over the
// requester's accessible documents, most recently updated first.
func (s *PostgresStore) SearchAuthorizedByTitle(ctx context.Context, req Requester, text string) ([]Document, error) {
	query := `SELECT * FROM (` + docSelect + `) d
		WHERE d.title ILIKE '%' || $3 || '%'
			AND d.deleted_at IS NULL AND d.ancestors_deleted_at IS NULL
			AND (` + authorizedPredicate(1, 2) + `
				OR (d.link_reach <> 'restricted' AND EXISTS (
					SELECT 1 FROM link_traces lt
					WHERE lt.document_id = d.id AND lt.user_sub = $1
				)))
		ORDER BY d.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, req.Sub, req.Teams, text)
	if err != nil {
		return nil, fmt.Errorf("search documents by title: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}
