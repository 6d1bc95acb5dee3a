package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

const keyTimeFormat = "20060102T150405Z"

// ErrNotConfigured is returned when no object store is configured.
var ErrNotConfigured = errors.New("backup not configured: bucket, credentials or passphrase missing")

// ObjectStore is the subset of the S3 API used for snapshots.
type ObjectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a path-style client, which works for AWS as well as
// MinIO, R2 and other S3-compatible stores.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Snapshot describes one uploaded backup.
type Snapshot struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds manager settings.
type Config struct {
	Bucket     string
	Prefix     string
	Passphrase string
}

// Manager takes encrypted snapshots of the SQLite database and keeps them
// in an object store.
type Manager struct {
	db     *sql.DB
	client ObjectStore
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(db *sql.DB, client ObjectStore, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		db:     db,
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "backup"),
		now:    time.Now,
	}
}

func (m *Manager) configured() bool {
	return m.client != nil && m.cfg.Bucket != "" && m.cfg.Passphrase != ""
}

// Run snapshots the database, encrypts it and uploads it.
func (m *Manager) Run(ctx context.Context) (Snapshot, error) {
	if !m.configured() {
		return Snapshot{}, ErrNotConfigured
	}

	tmpDir, err := os.MkdirTemp("", "chorewheel-backup-")
	if err != nil {
		return Snapshot{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// Consistent copy of the live database, WAL included.
	copyPath := filepath.Join(tmpDir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", copyPath); err != nil {
		return Snapshot{}, fmt.Errorf("vacuum into: %w", err)
	}
	plaintext, err := os.ReadFile(copyPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := Seal(plaintext, m.cfg.Passphrase)
	if err != nil {
		return Snapshot{}, err
	}

	created := m.now().UTC()
	snap := Snapshot{
		Key:       m.cfg.Prefix + "chorewheel-" + created.Format(keyTimeFormat) + ".db.enc",
		Size:      int64(len(sealed)),
		CreatedAt: created,
	}
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(snap.Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(snap.Size),
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("upload to s3: %w", err)
	}

	m.logger.Info("backup uploaded", "key", snap.Key, "bytes", snap.Size)
	return snap, nil
}

// List returns the snapshots under the configured prefix, oldest first.
func (m *Manager) List(ctx context.Context) ([]Snapshot, error) {
	if !m.configured() {
		return nil, ErrNotConfigured
	}

	var snaps []Snapshot
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.Bucket),
		Prefix: aws.String(m.cfg.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".db.enc") {
				continue
			}
			snaps = append(snaps, Snapshot{
				Key:       key,
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Key < snaps[j].Key })
	return snaps, nil
}

// Prune deletes snapshots older than retention and returns how many were
// removed. The newest snapshot is always kept.
func (m *Manager) Prune(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	snaps, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(snaps) <= 1 {
		return 0, nil
	}

	cutoff := m.now().UTC().Add(-retention)
	removed := 0
	for _, snap := range snaps[:len(snaps)-1] {
		if !snap.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(snap.Key),
		}); err != nil {
			m.logger.Warn("failed to delete snapshot", "key", snap.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Restore downloads and decrypts the snapshot at key, checks its integrity
// and writes it to dstPath. The server must not be running against dstPath.
func (m *Manager) Restore(ctx context.Context, key, dstPath string) error {
	if !m.configured() {
		return ErrNotConfigured
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	plaintext, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".chorewheel-restore-*.db")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(plaintext); err != nil {
		tmp.Close()
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}

	if err := checkIntegrity(ctx, tmpPath); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dstPath + "-wal")
	os.Remove(dstPath + "-shm")

	m.logger.Info("backup restored", "key", key, "db", dstPath)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Schedule runs a backup and prune every interval until ctx is cancelled.
// Failures are logged and retried on the next tick.
func (m *Manager) Schedule(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Run(ctx); err != nil {
				m.logger.Error("scheduled backup failed", "error", err)
				continue
			}
			if n, err := m.Prune(ctx, retention); err != nil {
				m.logger.Error("backup prune failed", "error", err)
			} else if n > 0 {
				m.logger.Info("pruned old backups", "removed", n)
			}
		}
	}
}
