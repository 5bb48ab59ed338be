package metadata

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

type preparedStatementKey string

const (
	insertEpisodeStmt preparedStatementKey = "insertEpisodeStmt"
	insertCueStmt     preparedStatementKey = "insertCueStmt"
	insertCueFTSStmt  preparedStatementKey = "insertCueFTSStmt"
)

// DatabaseBuilder writes a fresh catalog into a temporary database and moves
// it over the output path on Build.
type DatabaseBuilder struct {
	db                 *sql.DB
	preparedStatements map[preparedStatementKey]*sql.Stmt
	outputDatabasePath string
	tmpDatabasePath    string
}

func NewDatabaseBuilder(dbPath string) (*DatabaseBuilder, error) {
	tmpDbPath := dbPath + ".tmp"
	_, err := os.Stat(tmpDbPath)
	if err == nil {
		// Left over from an interrupted build
		err = os.Remove(tmpDbPath)
		if err != nil {
			log.Error().Err(err).Msg("Failed to remove temporary database")
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", tmpDbPath)
	if err != nil {
		return nil, err
	}

	schemaBytes, err := SchemaFS.ReadFile("schema.sql")
	if err != nil {
		db.Close() // nolint: errcheck
		log.Error().Err(err).Msg("Failed to read schema.sql")
		return nil, err
	}

	_, err = db.Exec(string(schemaBytes))
	if err != nil {
		db.Close() // nolint: errcheck
		log.Error().Err(err).Msg("Failed to execute schema.sql")
		return nil, err
	}

	preparedStatements := make(map[preparedStatementKey]*sql.Stmt)
	for key, stmt := range map[preparedStatementKey]string{
		insertEpisodeStmt: `INSERT INTO episodes (season, episode) VALUES (?, ?)`,
		insertCueStmt:     `INSERT INTO cues (episode_id, start_ts, text, html, still_key, thumbnail_key) VALUES (?, ?, ?, ?, ?, ?)`,
		insertCueFTSStmt:  `INSERT INTO cues_fts (docid, text) VALUES (?, ?)`,
	} {
		preparedStmt, err := db.Prepare(stmt)
		if err != nil {
			db.Close() // nolint: errcheck
			log.Error().Err(err).Msg("Failed to prepare statement")
			return nil, err
		}

		preparedStatements[key] = preparedStmt
	}

	return &DatabaseBuilder{
		db:                 db,
		preparedStatements: preparedStatements,
		outputDatabasePath: dbPath,
		tmpDatabasePath:    tmpDbPath,
	}, nil
}

func (b *DatabaseBuilder) Build() error {
	// Compact the database
	_, err := b.db.Exec("VACUUM")
	if err != nil {
		log.Error().Err(err).Msg("Failed to compact the database")
		return err
	}

	err = b.db.Close()
	if err != nil {
		log.Error().Err(err).Msg("Failed to close the database")
		return err
	}

	err = os.Rename(b.tmpDatabasePath, b.outputDatabasePath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to move the temporary database")
		return err
	}

	return nil
}

// Abort discards the temporary database.
func (b *DatabaseBuilder) Abort() {
	b.db.Close()                 // nolint: errcheck
	os.Remove(b.tmpDatabasePath) // nolint: errcheck
}

// AddEpisodeMetadata inserts an episode and all of its cues in one
// transaction.
func (b *DatabaseBuilder) AddEpisodeMetadata(metadata EpisodeMetadata) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() // nolint: errcheck

	res, err := tx.Stmt(b.preparedStatements[insertEpisodeStmt]).Exec(metadata.Season, metadata.Episode)
	if err != nil {
		log.Error().Err(err).Msg("Failed to insert episode")
		return err
	}

	episodeID, err := res.LastInsertId()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get episode ID")
		return err
	}

	insertCue := tx.Stmt(b.preparedStatements[insertCueStmt])
	insertFTS := tx.Stmt(b.preparedStatements[insertCueFTSStmt])
	for _, c := range metadata.Cues {
		res, err := insertCue.Exec(episodeID, c.Start, c.Text, c.HTML, c.StillKey, c.ThumbnailKey)
		if err != nil {
			log.Error().Err(err).Msg("Failed to insert cue")
			return err
		}
		cueID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := insertFTS.Exec(cueID, c.Text); err != nil {
			log.Error().Err(err).Msg("Failed to index cue")
			return err
		}
	}

	return tx.Commit()
}
