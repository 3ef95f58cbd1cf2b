package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// Narrow store interfaces required by the archiver. The archiver only needs
// the query methods it actually calls, not the full domain store interfaces;
// the Postgres and SQLite stores satisfy them implicitly.

// ResolutionArchiveSource provides read access to resolution records.
type ResolutionArchiveSource interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Resolution, error)
}

// StakeArchiveSource provides read access to the stakes of one proposition.
type StakeArchiveSource interface {
	ListByProposition(ctx context.Context, propositionID int64) ([]domain.Stake, error)
}

// maxArchiveBatch bounds how many resolutions one archive run exports.
const maxArchiveBatch = 10000

// ArchiveImpl implements domain.Archiver by querying the ledger stores for
// settled history, serialising it to JSONL, and uploading the result to S3.
//
// Archived records are never deleted from the primary store: the ledger is a
// permanent audit trail, and the export exists for offline analysis and
// backup, not for reclaiming space.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	resolutions ResolutionArchiveSource
	stakes      StakeArchiveSource
	audit       domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	resolutions ResolutionArchiveSource,
	stakes StakeArchiveSource,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		resolutions: resolutions,
		stakes:      stakes,
		audit:       audit,
	}
}

// settledRecord is one exported line: a resolution with the full stake list
// of its proposition, enough to re-derive every payout offline.
type settledRecord struct {
	Resolution domain.Resolution `json:"resolution"`
	Stakes     []domain.Stake    `json:"stakes"`
}

// ArchiveSettled exports every proposition resolved before the cutoff,
// together with its stakes, to S3 at archive/settled/YYYY-MM.jsonl. The
// archival event is recorded in the audit log and the count of exported
// propositions is returned.
func (a *ArchiveImpl) ArchiveSettled(ctx context.Context, before time.Time) (int64, error) {
	resolutions, err := a.resolutions.ListRecent(ctx, maxArchiveBatch)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled query: %w", err)
	}

	var records []settledRecord
	for _, r := range resolutions {
		if !r.ResolvedAt.Before(before) {
			continue
		}
		stakes, err := a.stakes.ListByProposition(ctx, r.PropositionID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive settled stakes %d: %w", r.PropositionID, err)
		}
		records = append(records, settledRecord{Resolution: r, Stakes: stakes})
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled marshal: %w", err)
	}

	path := archivePath("settled", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settled upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, "archive.settled", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive settled audit log: %w", err)
	}

	return count, nil
}

// ArchiveAudit exports all audit entries created before the cutoff to S3 at
// archive/audit/YYYY-MM.jsonl and returns the count of exported entries.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.audit.Log(ctx, "archive.audit", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/settled/2025-06.jsonl
//	archive/audit/2025-06.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
