package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	si "github.com/annel0/map-editor/internal/storage_interface"
	"github.com/go-sql-driver/mysql"
)

// MariaArchive хранит ревизии карт в MariaDB/MySQL.
// Использует таблицу map_revisions; seq - AUTO_INCREMENT.
type MariaArchive struct {
	db    *sql.DB
	codec *blobCodec
}

// NewMariaArchive подключается к MariaDB и создаёт таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения (user:pass@tcp(host:port)/dbname)
func NewMariaArchive(ctx context.Context, dsn string, compress bool) (*MariaArchive, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("некорректный DSN MariaDB: %w", err)
	}
	// created_at сканируется в time.Time
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	codec, err := newBlobCodec(compress)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &MariaArchive{db: db, codec: codec}
	if err := a.createTable(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return a, nil
}

func (a *MariaArchive) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS map_revisions (
			seq         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			id          CHAR(36)     NOT NULL UNIQUE,
			name        VARCHAR(255) NOT NULL,
			created_at  DATETIME(6)  NOT NULL,
			size        INT          NOT NULL,
			stored_size INT          NOT NULL,
			compressed  BOOLEAN      NOT NULL,
			digest      CHAR(64)     NOT NULL,
			meta        TEXT,
			data        LONGBLOB     NOT NULL,
			INDEX idx_name_seq (name, seq)
		) ENGINE=InnoDB
	`

	if _, err := a.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы map_revisions: %w", err)
	}
	return nil
}

func (a *MariaArchive) Put(ctx context.Context, name string, data []byte, meta map[string]string) (si.Revision, error) {
	if err := validName(name); err != nil {
		return si.Revision{}, err
	}

	rev, stored := a.codec.pack(name, data, meta)
	metaJSON, err := json.Marshal(rev.Meta)
	if err != nil {
		return si.Revision{}, fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	query := `
		INSERT INTO map_revisions (id, name, created_at, size, stored_size, compressed, digest, meta, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := a.db.ExecContext(ctx, query,
		rev.ID, rev.Name, rev.Created, rev.Size, rev.Stored, rev.Compressed, rev.Digest, string(metaJSON), stored)
	if err != nil {
		return si.Revision{}, fmt.Errorf("ошибка сохранения ревизии %q: %w", name, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return si.Revision{}, fmt.Errorf("ошибка получения seq ревизии: %w", err)
	}
	rev.Seq = uint64(seq)
	return rev, nil
}

const revisionColumns = `seq, id, name, created_at, size, stored_size, compressed, digest, meta`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner, extra ...any) (si.Revision, error) {
	var (
		rev  si.Revision
		meta sql.NullString
	)
	dest := append([]any{
		&rev.Seq, &rev.ID, &rev.Name, &rev.Created, &rev.Size, &rev.Stored, &rev.Compressed, &rev.Digest, &meta,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return si.Revision{}, err
	}
	if meta.Valid && meta.String != "" && meta.String != "null" {
		if err := json.Unmarshal([]byte(meta.String), &rev.Meta); err != nil {
			return si.Revision{}, fmt.Errorf("метаданные ревизии %s: %w", rev.ID, err)
		}
	}
	return rev, nil
}

func (a *MariaArchive) getWhere(ctx context.Context, where string, arg any) (si.Revision, []byte, error) {
	query := `SELECT ` + revisionColumns + `, data FROM map_revisions ` + where

	var stored []byte
	rev, err := scanRevision(a.db.QueryRowContext(ctx, query, arg), &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return si.Revision{}, nil, si.ErrNotFound
	}
	if err != nil {
		return si.Revision{}, nil, fmt.Errorf("ошибка загрузки ревизии: %w", err)
	}

	data, err := a.codec.unpack(rev, stored)
	if err != nil {
		return si.Revision{}, nil, err
	}
	return rev, data, nil
}

func (a *MariaArchive) Get(ctx context.Context, id string) (si.Revision, []byte, error) {
	return a.getWhere(ctx, `WHERE id = ?`, id)
}

func (a *MariaArchive) Latest(ctx context.Context, name string) (si.Revision, []byte, error) {
	return a.getWhere(ctx, `WHERE name = ? ORDER BY seq DESC LIMIT 1`, name)
}

func (a *MariaArchive) List(ctx context.Context, name string) ([]si.Revision, error) {
	query := `SELECT ` + revisionColumns + ` FROM map_revisions WHERE name = ? ORDER BY seq DESC`

	rows, err := a.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса ревизий %q: %w", name, err)
	}
	defer rows.Close()

	var out []si.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения ревизии: %w", err)
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (a *MariaArchive) Delete(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM map_revisions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления ревизии %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rowsAffected == 0 {
		return si.ErrNotFound
	}
	return nil
}

// Close закрывает соединение с базой данных.
func (a *MariaArchive) Close() error {
	a.codec.close()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
