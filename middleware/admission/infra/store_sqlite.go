package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"telemetry-gateway/middleware/admission/domain"
)

const sqliteDriver = "libsql"

// SQLiteCounterStore persiste os contadores em um banco libsql/SQLite local.
//
// O estado da janela sobrevive a restart do processo: é relido do arquivo.
// Um mutex serializa a transação ler-decidir-gravar; o SQLite já serializa
// escritas, o lock só evita disputa por "database is locked" entre goroutines.
type SQLiteCounterStore struct {
	db *sql.DB
	mu sync.Mutex
}

const createRequestLimits = `
CREATE TABLE IF NOT EXISTS request_limits (
	client_key    TEXT PRIMARY KEY,
	request_count INTEGER NOT NULL,
	window_start  INTEGER NOT NULL
)`

// OpenSQLiteCounterStore abre (ou cria) o banco no caminho dado e garante o schema.
// Aceita um caminho de arquivo simples, ":memory:" ou uma URL "file:...".
func OpenSQLiteCounterStore(ctx context.Context, path string) (*SQLiteCounterStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite store: path is required")
	}

	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = "file:" + filepath.Clean(path)
	}

	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if _, err := db.ExecContext(ctx, createRequestLimits); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create request_limits: %w", err)
	}
	return &SQLiteCounterStore{db: db}, nil
}

// Close libera a conexão com o banco.
func (s *SQLiteCounterStore) Close() error {
	return s.db.Close()
}

// CheckAndIncrement implementa domain.CounterStore.
// Toda falha do banco é mapeada para domain.ErrStorageUnavailable; o detalhe
// vai no erro embrulhado, nunca para o cliente.
func (s *SQLiteCounterStore) CheckAndIncrement(ctx context.Context, key domain.Key, limit int64, window time.Duration, now time.Time) (domain.Outcome, error) {
	nowUnix := now.Unix()
	windowSec := int64(window / time.Second)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Denied, fmt.Errorf("%w: begin: %v", domain.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var count, start int64
	err = tx.QueryRowContext(ctx,
		`SELECT request_count, window_start FROM request_limits WHERE client_key = ?`,
		string(key),
	).Scan(&count, &start)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		count, start = 0, nowUnix
	case err != nil:
		return domain.Denied, fmt.Errorf("%w: select: %v", domain.ErrStorageUnavailable, err)
	default:
		if nowUnix-start > windowSec {
			count, start = 0, nowUnix
		}
		if count >= limit {
			return domain.Denied, nil
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO request_limits (client_key, request_count, window_start) VALUES (?, ?, ?)
		ON CONFLICT(client_key) DO UPDATE SET
			request_count = excluded.request_count,
			window_start  = excluded.window_start`,
		string(key), count+1, start,
	)
	if err != nil {
		return domain.Denied, fmt.Errorf("%w: upsert: %v", domain.ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Denied, fmt.Errorf("%w: commit: %v", domain.ErrStorageUnavailable, err)
	}
	return domain.Admitted, nil
}

// Get retorna o registro persistido da chave, se existir.
func (s *SQLiteCounterStore) Get(ctx context.Context, key domain.Key) (domain.Record, bool, error) {
	var rec domain.Record
	err := s.db.QueryRowContext(ctx,
		`SELECT request_count, window_start FROM request_limits WHERE client_key = ?`,
		string(key),
	).Scan(&rec.RequestCount, &rec.WindowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, false, nil
	}
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("%w: select: %v", domain.ErrStorageUnavailable, err)
	}
	rec.Key = key
	return rec, true, nil
}

// DeleteExpired remove registros cuja janela começou há mais que olderThan.
// Higiene de armazenamento apenas; não afeta a correção do limite.
func (s *SQLiteCounterStore) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM request_limits WHERE window_start < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired: %v", domain.ErrStorageUnavailable, err)
	}
	return res.RowsAffected()
}
