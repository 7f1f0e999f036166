// Package archive keeps a copy of bookings whose ERP sync failed in S3 so an
// operator can replay or reconcile them by hand.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const recordVersion = "1.0"

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives failed-sync records to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

var _ bookings.FailureArchiver = (*Store)(nil)

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveFailedSync writes the booking and its push error to S3 and appends
// the monthly manifest. A later failure for the same booking overwrites the
// same day's record.
func (s *Store) ArchiveFailedSync(ctx context.Context, b *bookings.Booking, syncErr error) error {
	if !s.Enabled() || b == nil {
		return nil
	}

	now := s.now().UTC()
	record := FailedSyncRecord{
		Version:       recordVersion,
		BookingID:     b.ID,
		BookingNumber: b.BookingNumber,
		ArchivedAt:    now,
		Failure:       Classify(syncErr),
		Booking:       digest(b),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	key := RecordKey(now, b.BookingNumber)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived failed sync",
		"booking_number", b.BookingNumber,
		"s3_key", key,
		"outcome", record.Failure.Outcome,
	)

	entry := ManifestEntry{
		BookingNumber: b.BookingNumber,
		S3Key:         key,
		Outcome:       record.Failure.Outcome,
		Retryable:     record.Failure.Retryable,
		ArchivedAt:    now.Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "booking_number", b.BookingNumber)
	}
	return nil
}

// Get reads one archived record back.
func (s *Store) Get(ctx context.Context, key string) (*FailedSyncRecord, error) {
	if !s.Enabled() {
		return nil, errors.New("archive: not configured")
	}
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	var record FailedSyncRecord
	if err := json.NewDecoder(out.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("archive: decode %s: %w", key, err)
	}
	return &record, nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	manifestKey := ManifestKey(s.now().UTC())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(getResp.Body)
		getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

// RecordKey is the object key for a booking archived at t.
func RecordKey(t time.Time, bookingNumber string) string {
	return fmt.Sprintf("failed-syncs/v1/by-date/%d/%02d/%02d/%s.json",
		t.Year(), t.Month(), t.Day(), bookingNumber)
}

// ManifestKey is the manifest object key for the month of t.
func ManifestKey(t time.Time) string {
	return fmt.Sprintf("failed-syncs/v1/manifests/%d-%02d.jsonl", t.Year(), t.Month())
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var notFound *s3types.NotFound
	return errors.As(err, &notFound)
}

func digest(b *bookings.Booking) BookingDigest {
	return BookingDigest{
		Species:         string(b.Species),
		PetName:         b.PetName,
		SizeClass:       string(b.SizeClass),
		PackageTier:     string(b.PackageTier),
		Detangling:      b.AddOns.Detangling,
		AppointmentAt:   b.AppointmentAt,
		AppointmentDate: b.AppointmentDate,
		AppointmentTime: b.AppointmentTime,
		CustomerName:    b.CustomerName,
		EmailHash:       HashContact(b.CustomerEmail),
		PhoneHash:       HashPhone(b.CustomerPhone),
		SpecialNotes:    ScrubPII(b.SpecialNotes),
		Price:           b.Price,
		Currency:        b.Currency,
		CreatedAt:       b.CreatedAt,
	}
}
