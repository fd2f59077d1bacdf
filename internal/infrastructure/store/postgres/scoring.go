package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// dotProductQuery multiplies the stored and query arrays element by element
// after unnesting both with their ordinal positions. Ids compare bytewise
// ("C" collation) so ties resolve the same way as in application scoring.
const dotProductQuery = `
SELECT d.id, d.text, d.metadata, d.embedding, %s AS score
FROM (
	SELECT p.id, p.text, p.metadata, p.embedding, p.norm,
		(
			SELECT COALESCE(SUM(e.x::double precision * q.x::double precision), 0)
			FROM jsonb_array_elements_text(p.embedding) WITH ORDINALITY AS e(x, i)
			JOIN jsonb_array_elements_text($1::jsonb) WITH ORDINALITY AS q(x, i) ON e.i = q.i
		) AS dot
	FROM permit_documents p
) d
ORDER BY score DESC, d.id COLLATE "C" ASC
LIMIT $2
`

func (s *Store) nearestInDatabase(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	scoreExpr := "d.dot"
	query := vector
	if s.metric == domain.MetricCosine {
		scoreExpr = "CASE WHEN d.norm = 0 THEN 0 ELSE d.dot / d.norm END"
		query = domain.Normalize(vector)
	}
	encoded, err := json.Marshal(query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "nearest", fmt.Errorf("encode query: %w", err))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(dotProductQuery, scoreExpr), string(encoded), k)
	if err != nil {
		return nil, storeError(ctx, "nearest", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievalResult, 0, k)
	for rows.Next() {
		var (
			doc   domain.Document
			score float64
		)
		if err := scanDocument(rows, &doc, &score); err != nil {
			return nil, err
		}
		out = append(out, domain.RetrievalResult{Document: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(ctx, "nearest", err)
	}
	return out, nil
}

func (s *Store) nearestInApplication(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, metadata, embedding FROM permit_documents`)
	if err != nil {
		return nil, storeError(ctx, "nearest", err)
	}
	defer rows.Close()

	scored := make([]domain.RetrievalResult, 0)
	for rows.Next() {
		var doc domain.Document
		if err := scanDocument(rows, &doc, nil); err != nil {
			return nil, err
		}
		score, err := domain.Similarity(s.metric, vector, doc.Vector)
		if err != nil {
			return nil, domain.DimensionMismatch("nearest", len(doc.Vector), len(vector))
		}
		scored = append(scored, domain.RetrievalResult{Document: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(ctx, "nearest", err)
	}
	return domain.TopK(scored, k), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(rows rowScanner, doc *domain.Document, score *float64) error {
	var metadata, embedding []byte
	dest := []any{&doc.ID, &doc.Text, &metadata, &embedding}
	if score != nil {
		dest = append(dest, score)
	}
	if err := rows.Scan(dest...); err != nil {
		return domain.WrapError(domain.ErrStore, "scan document", err)
	}
	if err := json.Unmarshal(embedding, &doc.Vector); err != nil {
		return domain.WrapError(domain.ErrStore, "decode embedding", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return domain.WrapError(domain.ErrStore, "decode metadata", err)
		}
	}
	if len(doc.Metadata) == 0 {
		doc.Metadata = nil
	}
	return nil
}
