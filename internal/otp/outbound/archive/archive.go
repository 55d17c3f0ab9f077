package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Archive exports audit entries to object storage, one JSONL object per run.
type Archive struct {
	store  storage.Storage
	bucket string
	ins    instrument.Instrumentation
}

func NewArchive(store storage.Storage, bucket string, ins instrument.Instrumentation) *Archive {
	return &Archive{store: store, bucket: bucket, ins: ins}
}

// ObjectKey is audit/<yyyy>/<mm>/<dd>/<unixnano>.jsonl in UTC.
func ObjectKey(runAt time.Time) string {
	runAt = runAt.UTC()
	return fmt.Sprintf("audit/%04d/%02d/%02d/%d.jsonl", runAt.Year(), runAt.Month(), runAt.Day(), runAt.UnixNano())
}

func (a *Archive) ArchiveAudits(ctx context.Context, runAt time.Time, entries []entity.AuditEntry) error {
	ctx, span := a.ins.Tracer("otp.outbound.archive").Start(ctx, "ArchiveAudits")
	defer span.End()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(entries[i]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	key := ObjectKey(runAt)
	span.SetAttributes(attribute.String("archive.key", key), attribute.Int("archive.entries", len(entries)))

	if _, err := a.store.PutObject(ctx, a.bucket, key, bytes.NewReader(buf.Bytes()), storage.PutOptions{
		Size:        int64(buf.Len()),
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"entries": strconv.Itoa(len(entries))},
		NoOverwrite: true,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
