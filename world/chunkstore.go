package world

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	_ "modernc.org/sqlite"

	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/internal/monitoring"
)

// ChunkSize is the width and depth of a chunk in columns.
const ChunkSize = 16

// DefaultChunkCacheSize is the default number of chunks held in memory.
const DefaultChunkCacheSize = 256

var (
	chunkCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_chunk_cache_hits_total",
		Help: "The total number of hits on the chunk cache",
	})
	chunkCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_chunk_cache_misses_total",
		Help: "The total number of misses on the chunk cache",
	})
	chunkCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_chunk_cache_evictions_total",
		Help: "The total number of evictions from the chunk cache",
	})
	chunkWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_chunk_writes_total",
		Help: "The total number of chunks written to the database",
	})
)

//go:embed schema.sql
var schemaSQL string

// A ChunkCoord is the coordinate of a chunk.
type ChunkCoord struct {
	CX int
	CZ int
}

// ChunkCoordOf returns the coordinate of the chunk containing the column at x,
// z.
func ChunkCoordOf(x, z int) ChunkCoord {
	return ChunkCoord{
		CX: floorDiv(x, ChunkSize),
		CZ: floorDiv(z, ChunkSize),
	}
}

type chunk struct {
	Columns [ChunkSize * ChunkSize]*column `json:"columns"`
	dirty   bool
}

func (c *chunk) index(x, z int) int {
	return floorMod(z, ChunkSize)*ChunkSize + floorMod(x, ChunkSize)
}

// A ChunkStore is a Store that pages chunks of columns between an LRU cache
// and an SQLite database. Chunks are stored as zstd-compressed JSON.
type ChunkStore struct {
	mutex        sync.Mutex
	db           *sql.DB
	heightSource HeightSource
	cacheSize    int
	chunkCache   *lru.Cache[ChunkCoord, *chunk]
	encoder      *zstd.Encoder
	decoder      *zstd.Decoder
	evictErr     error
	lastSaveID   uuid.UUID
	closed       bool
}

// A ChunkStoreOption sets an option on a ChunkStore.
type ChunkStoreOption func(*ChunkStore)

// WithChunkCacheSize sets the maximum number of chunks held in memory.
func WithChunkCacheSize(cacheSize int) ChunkStoreOption {
	return func(s *ChunkStore) {
		s.cacheSize = cacheSize
	}
}

// WithHeightSource sets the source of terrain heights for new columns.
func WithHeightSource(heightSource HeightSource) ChunkStoreOption {
	return func(s *ChunkStore) {
		s.heightSource = heightSource
	}
}

// NewChunkStore opens or creates the SQLite database at path and returns a
// new ChunkStore backed by it.
func NewChunkStore(ctx context.Context, path string, options ...ChunkStoreOption) (*ChunkStore, error) {
	s := &ChunkStore{
		heightSource: Flat(64),
		cacheSize:    DefaultChunkCacheSize,
	}
	for _, option := range options {
		option(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	s.db = db

	s.encoder, err = zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.decoder, err = zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	s.chunkCache, err = lru.NewWithEvict(s.cacheSize, func(chunkCoord ChunkCoord, c *chunk) {
		if !c.dirty {
			return
		}
		if err := s.writeChunks(context.Background(), map[ChunkCoord]*chunk{chunkCoord: c}); err != nil {
			s.evictErr = errors.Join(s.evictErr, err)
		}
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// ColumnHeight implements Store.ColumnHeight.
func (s *ChunkStore) ColumnHeight(ctx context.Context, x, z int) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	col, _, err := s.column(ctx, x, z)
	if err != nil {
		return 0, err
	}
	return col.height(), nil
}

// SetBlock implements Store.SetBlock.
func (s *ChunkStore) SetBlock(ctx context.Context, x, y, z int, block Block) error {
	if err := checkPos(x, y, z); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	col, c, err := s.column(ctx, x, z)
	if err != nil {
		return err
	}
	col.setBlock(y, block)
	c.dirty = true
	return nil
}

// Block implements Store.Block.
func (s *ChunkStore) Block(ctx context.Context, x, y, z int) (Block, error) {
	if err := checkPos(x, y, z); err != nil {
		return Block{}, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	col, _, err := s.column(ctx, x, z)
	if err != nil {
		return Block{}, err
	}
	return col.block(y), nil
}

// Attach implements Store.Attach.
func (s *ChunkStore) Attach(ctx context.Context, x, y, z int, attachment Attachment) error {
	if err := checkPos(x, y, z); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	col, c, err := s.column(ctx, x, z)
	if err != nil {
		return err
	}
	col.attach(y, attachment)
	c.dirty = true
	return nil
}

// Attachment returns the attachment on the block at x, y, z, if any.
func (s *ChunkStore) Attachment(ctx context.Context, x, y, z int) (Attachment, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	col, _, err := s.column(ctx, x, z)
	if err != nil {
		return Attachment{}, false, err
	}
	attachment, ok := col.Attachments[y]
	return attachment, ok, nil
}

// Flush implements Store.Flush. It writes every dirty cached chunk to the
// database in a single transaction.
func (s *ChunkStore) Flush(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.flush(ctx)
}

// Save implements Store.Save. It flushes s, checkpoints the database, and
// records the save.
func (s *ChunkStore) Save(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.flush(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return err
	}
	var chunks int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&chunks); err != nil {
		return err
	}
	saveID := uuid.New()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO saves (save_id, saved_unix_nanos, chunks) VALUES (?, ?, ?)",
		saveID.String(), time.Now().UnixNano(), chunks,
	); err != nil {
		return err
	}
	s.lastSaveID = saveID
	monitoring.Logf("world: saved %d chunks as %s", chunks, saveID)
	return nil
}

// LastSaveID returns the ID of the last successful Save.
func (s *ChunkStore) LastSaveID() uuid.UUID {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastSaveID
}

// Close flushes s and closes its database.
func (s *ChunkStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	err := s.flush(context.Background())
	s.closed = true
	s.encoder.Close()
	s.decoder.Close()
	return errors.Join(err, s.db.Close())
}

func (s *ChunkStore) flush(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.evictErr; err != nil {
		s.evictErr = nil
		return err
	}
	dirtyChunks := make(map[ChunkCoord]*chunk)
	for _, chunkCoord := range s.chunkCache.Keys() {
		if c, ok := s.chunkCache.Peek(chunkCoord); ok && c.dirty {
			dirtyChunks[chunkCoord] = c
		}
	}
	if len(dirtyChunks) == 0 {
		return nil
	}
	return s.writeChunks(ctx, dirtyChunks)
}

// column returns the column at x, z and its chunk, loading the chunk and
// generating the column as needed.
func (s *ChunkStore) column(ctx context.Context, x, z int) (*column, *chunk, error) {
	if s.closed {
		return nil, nil, ErrClosed
	}
	c, err := s.getChunkCached(ctx, ChunkCoordOf(x, z))
	if err != nil {
		return nil, nil, err
	}
	index := c.index(x, z)
	if col := c.Columns[index]; col != nil {
		return col, c, nil
	}
	terrain, err := s.heightSource.Height(ctx, geo.GridCell{X: x, Z: z})
	if err != nil {
		return nil, nil, err
	}
	col := newColumn(terrain)
	c.Columns[index] = col
	c.dirty = true
	return col, c, nil
}

func (s *ChunkStore) getChunkCached(ctx context.Context, chunkCoord ChunkCoord) (*chunk, error) {
	if c, ok := s.chunkCache.Get(chunkCoord); ok {
		chunkCacheHits.Inc()
		return c, nil
	}
	chunkCacheMisses.Inc()

	c, err := s.readChunk(ctx, chunkCoord)
	if err != nil {
		return nil, err
	}

	if eviction := s.chunkCache.Add(chunkCoord, c); eviction {
		chunkCacheEvictions.Inc()
	}
	return c, nil
}

func (s *ChunkStore) readChunk(ctx context.Context, chunkCoord ChunkCoord) (*chunk, error) {
	var data []byte
	switch err := s.db.QueryRowContext(ctx,
		"SELECT data FROM chunks WHERE cx = ? AND cz = ?",
		chunkCoord.CX, chunkCoord.CZ,
	).Scan(&data); {
	case errors.Is(err, sql.ErrNoRows):
		return &chunk{}, nil
	case err != nil:
		return nil, err
	}
	decoded, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("chunk %d,%d: %w", chunkCoord.CX, chunkCoord.CZ, err)
	}
	c := &chunk{}
	if err := json.Unmarshal(decoded, c); err != nil {
		return nil, fmt.Errorf("chunk %d,%d: %w", chunkCoord.CX, chunkCoord.CZ, err)
	}
	return c, nil
}

func (s *ChunkStore) writeChunks(ctx context.Context, chunks map[ChunkCoord]*chunk) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (cx, cz, data) VALUES (?, ?, ?) "+
			"ON CONFLICT (cx, cz) DO UPDATE SET data = excluded.data",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for chunkCoord, c := range chunks {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, chunkCoord.CX, chunkCoord.CZ, s.encoder.EncodeAll(data, nil)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, c := range chunks {
		c.dirty = false
		chunkWrites.Inc()
	}
	return nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
