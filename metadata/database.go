package metadata

import (
	"context"
	"database/sql"
)

type Database struct {
	db                 *sql.DB
	preparedStatements map[preparedStatementKey]*sql.Stmt
}

const (
	searchStmt           preparedStatementKey = "searchStmt"
	listCuesForwardStmt  preparedStatementKey = "listCuesForwardStmt"
	listCuesBackwardStmt preparedStatementKey = "listCuesBackwardStmt"
)

const cueColumns = `cues.start_ts, cues.text, cues.html, cues.still_key, cues.thumbnail_key`

func OpenDatabase(dbPath string) (*Database, error) {
	// Open the database as read-only
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}

	preparedStatements := make(map[preparedStatementKey]*sql.Stmt)
	for key, query := range map[preparedStatementKey]string{
		searchStmt:           `SELECT episodes.season, episodes.episode, ` + cueColumns + ` FROM cues INNER JOIN cues_fts ON cues.id = cues_fts.docid INNER JOIN episodes ON cues.episode_id = episodes.id WHERE cues_fts MATCH ? ORDER BY episodes.season, episodes.episode, cues.start_ts LIMIT ?`,
		listCuesForwardStmt:  `SELECT ` + cueColumns + ` FROM cues WHERE episode_id = (SELECT id FROM episodes WHERE season = ? AND episode = ?) AND start_ts >= ? ORDER BY start_ts ASC LIMIT ?`,
		listCuesBackwardStmt: `SELECT ` + cueColumns + ` FROM cues WHERE episode_id = (SELECT id FROM episodes WHERE season = ? AND episode = ?) AND start_ts <= ? ORDER BY start_ts DESC LIMIT ?`,
	} {
		stmt, err := db.Prepare(query)
		if err != nil {
			db.Close() // nolint: errcheck
			return nil, err
		}

		preparedStatements[key] = stmt
	}

	return &Database{
		db:                 db,
		preparedStatements: preparedStatements,
	}, nil
}

type SearchResult struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
	CueMetadata
}

func (d *Database) Search(ctx context.Context, queryString string, limit int) ([]SearchResult, error) {
	rows, err := d.preparedStatements[searchStmt].QueryContext(ctx, queryString, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var result SearchResult
		err := rows.Scan(
			&result.Season,
			&result.Episode,
			&result.Start,
			&result.Text,
			&result.HTML,
			&result.StillKey,
			&result.ThumbnailKey,
		)
		if err != nil {
			return nil, err
		}

		results = append(results, result)
	}

	return results, rows.Err()
}

// ListCues returns up to count cues of an episode starting at timestamp,
// walking backwards in time when reverse is set.
func (d *Database) ListCues(ctx context.Context, season int, episode int, timestamp int64, count int, reverse bool) ([]CueMetadata, error) {
	var stmtKey preparedStatementKey
	if reverse {
		stmtKey = listCuesBackwardStmt
	} else {
		stmtKey = listCuesForwardStmt
	}

	rows, err := d.preparedStatements[stmtKey].QueryContext(ctx, season, episode, timestamp, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CueMetadata
	for rows.Next() {
		result := CueMetadata{}
		err := rows.Scan(&result.Start, &result.Text, &result.HTML, &result.StillKey, &result.ThumbnailKey)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (d *Database) Close() error {
	return d.db.Close()
}
